/*
   Copyright The Zero OS Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package axiomlog

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/zeroos-project/zeroos/core/kernel"
)

var (
	bucketKeyCommits = []byte("commits")
	bucketKeyMeta    = []byte("meta")
	metaKeyHead      = []byte("head")
)

// Store is the on-disk mirror of a CommitLog, used by the hardware
// platform so the kernel can replay across a reboot instead of starting
// from Genesis every boot (spec's "two-log on-disk layout"). It is a
// write-behind mirror, not the log of record during a live boot: the
// in-memory CommitLog is authoritative while the kernel is running, and
// Store.Append is called alongside CommitLog.Append to keep the mirror
// current.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if absent) a bbolt database at path for use as
// a CommitLog mirror.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening axiomlog store at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKeyCommits); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketKeyMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing axiomlog store buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists one commit keyed by its big-endian sequence number, so
// bbolt's natural key ordering is also sequence order, and records it as
// the new chain head.
func (s *Store) Append(c kernel.Commit) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKeyCommits)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, c.Seq)
		if err := bucket.Put(key, encodeArchivedCommit(c)); err != nil {
			return err
		}
		return tx.Bucket(bucketKeyMeta).Put(metaKeyHead, c.ID[:])
	})
}

// StoredCommit is the decoded form of a persisted record: enough to drive
// replay without re-deriving the hash chain from scratch (the id and prev
// hash are stored verbatim rather than recomputed, so a corrupted on-disk
// body is detectable by recomputing and comparing, not silently trusted).
type StoredCommit struct {
	Seq       uint64
	ID        [32]byte
	Prev      [32]byte
	Timestamp uint64
	Body      []byte // EncodeBody output; the caller must know the discriminant to decode further
}

// LoadAll returns every persisted commit in ascending sequence order.
func (s *Store) LoadAll() ([]StoredCommit, error) {
	var out []StoredCommit
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKeyCommits)
		return bucket.ForEach(func(k, v []byte) error {
			if len(v) < 72 {
				return fmt.Errorf("axiomlog store: truncated record at seq %d", binary.BigEndian.Uint64(k))
			}
			sc := StoredCommit{Seq: binary.BigEndian.Uint64(k)}
			copy(sc.ID[:], v[0:32])
			copy(sc.Prev[:], v[32:64])
			sc.Timestamp = binary.BigEndian.Uint64(v[64:72])
			sc.Body = append([]byte(nil), v[72:]...)
			out = append(out, sc)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading axiomlog store: %w", err)
	}
	return out, nil
}

// LoadCommits decodes every persisted record into a kernel.Commit ready
// for core/replay and core/replay.ReplayAndVerify, in ascending sequence
// order.
func (s *Store) LoadCommits() ([]kernel.Commit, error) {
	stored, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	out := make([]kernel.Commit, len(stored))
	for i, sc := range stored {
		body, err := kernel.DecodeBody(sc.Body)
		if err != nil {
			return nil, fmt.Errorf("axiomlog store: decoding commit at seq %d: %w", sc.Seq, err)
		}
		out[i] = kernel.Commit{ID: sc.ID, Prev: sc.Prev, Seq: sc.Seq, Timestamp: sc.Timestamp, Body: body}
	}
	return out, nil
}

// Head returns the persisted chain head hash, or the all-zero Genesis
// root if the store has never had a commit appended.
func (s *Store) Head() ([32]byte, error) {
	var head [32]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKeyMeta).Get(metaKeyHead)
		copy(head[:], v)
		return nil
	})
	if err != nil {
		return head, fmt.Errorf("reading axiomlog store head: %w", err)
	}
	return head, nil
}
