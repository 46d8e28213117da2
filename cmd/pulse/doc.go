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

// Package main implements the pulse command-line interface.
// This tool tracks issue, pull request and release activity across a set
// of GitHub repositories, persisting state locally so every run only
// reports what changed since the last one.
//
// The CLI supports:
//   - Continuous polling with the watch command
//   - Single-pass operation with watch --once
//   - Discord webhook notifications for detected transitions
//   - CSV activity reports over a date window with the report command
//   - GitHub token authentication via flag or environment variable
//   - Graceful error handling with appropriate exit codes
//
// Usage:
//
//	pulse watch [<org>/<repo>...] [flags]
//	pulse report <org>/<repo> --from 2022-11-01 --to 2022-11-25 [flags]
//
// Example:
//
//	export GITHUB_TOKEN=your_token
//	pulse watch Manta-Network/Manta --interval 2m
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication/authorization error
//   - 3: Network error
//   - 4: Persisted state corruption
package main
