// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store provides persistent key-value state for the tracker, backed
// by BadgerDB. Items are keyed by a stable composite of repository,
// category, status bucket, and item number, so a prefix scan over one
// bucket returns exactly that bucket's members.
//
// Bucket transitions use Move, which deletes the old entry and writes the
// new one in a single transaction: an item is never observable in two
// buckets and never lost between them, regardless of crashes.
package store
