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

package store

import "fmt"

// Store is the key-value persistence capability the reconciliation engine
// consumes. Keys are composite (see Key); values are opaque encoded records.
//
// BatchPut and Move are atomic: either every write in the call is visible
// afterwards or none is. ScanPrefix produces entries lazily in key order and
// is not restartable mid-scan.
type Store interface {
	// Get returns the value for key, or ok=false if the key is absent.
	Get(key []byte) (value []byte, ok bool, err error)

	// Put inserts or overwrites a single entry.
	Put(key, value []byte) error

	// BatchPut inserts or overwrites all entries atomically. Re-inserting
	// an existing key is a value overwrite, not an error.
	BatchPut(entries []Entry) error

	// BatchWrite applies puts and deletes in one atomic transaction:
	// either every write in the call is visible afterwards or none is.
	// Deleting an absent key is not an error.
	BatchWrite(puts []Entry, deletes [][]byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// Move atomically deletes oldKey and writes value under newKey. Used
	// for bucket transitions so an item is never visible in two buckets
	// and never lost between them.
	Move(oldKey, newKey, value []byte) error

	// ScanPrefix calls fn for every entry whose key starts with prefix,
	// in key order. Returning an error from fn stops the scan and is
	// propagated.
	ScanPrefix(prefix []byte, fn func(key, value []byte) error) error

	// Close releases the underlying database. The store must not be used
	// after Close.
	Close() error
}

// Entry is a single key-value pair for batched writes.
type Entry struct {
	Key   []byte
	Value []byte
}

// Key identifies one tracked item in the store. The rendered form is
//
//	org#repo#category#bucket#number
//
// so that a prefix scan over (org, repo, category, bucket) yields exactly
// that bucket's members. The layout is part of the on-disk format.
type Key struct {
	Org      string
	Repo     string
	Category string
	Bucket   string
	Number   int
}

// Bytes renders the key in its stable composite form.
func (k Key) Bytes() []byte {
	return []byte(fmt.Sprintf("%s#%s#%s#%s#%d", k.Org, k.Repo, k.Category, k.Bucket, k.Number))
}

// BucketPrefix returns the scan prefix covering every item in one status
// bucket of one repository and category. The trailing separator keeps
// bucket names from matching on shared prefixes.
func BucketPrefix(org, repo, category, bucket string) []byte {
	return []byte(fmt.Sprintf("%s#%s#%s#%s#", org, repo, category, bucket))
}

// ReleaseKey returns the key holding the last seen release tag of a
// repository. Releases have no lifecycle buckets.
func ReleaseKey(org, repo string) []byte {
	return []byte(fmt.Sprintf("%s#%s#releases#latest", org, repo))
}
