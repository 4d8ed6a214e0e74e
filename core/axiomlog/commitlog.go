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
	"sync"

	"github.com/containerd/errdefs"
	"github.com/containerd/log"
	"github.com/klauspost/compress/zstd"
	"github.com/zeroos-project/zeroos/core/kernel"
)

// Archiver receives commits evicted from a full CommitLog so they are not
// lost outright, only moved out of the hot ring. It is an optional
// supplement (off by default): ephemeral HAL backends have nowhere
// durable to put them, but the hardware platform's bbolt-backed Store
// wires one in via zstd so cold commits stay inspectable without holding
// the ring's Go memory.
type Archiver interface {
	Archive(commits []kernel.Commit) error
}

// CommitLog is the bounded, hash-chained record of every mutation Step has
// admitted. It is the sole source of truth replay folds over; SysLog is
// never consulted during replay.
type CommitLog struct {
	mu       sync.Mutex
	commits  []kernel.Commit
	capacity int
	lastHash [32]byte
	nextSeq  uint64
	archiver Archiver
}

// NewCommitLog returns an empty log with the Genesis hash as its chain
// root and room for capacity commits before eviction begins.
func NewCommitLog(capacity int) *CommitLog {
	return &CommitLog{capacity: capacity}
}

// WithArchiver attaches an Archiver that receives commits evicted on
// overflow, returning the same *CommitLog for chaining at construction
// time.
func (c *CommitLog) WithArchiver(a Archiver) *CommitLog {
	c.archiver = a
	return c
}

// Append computes the commit's id by chaining off the current head,
// assigns the next sequence number, and stores it. It never rejects a
// well-formed body: CommitLog trusts its caller (the Gateway, which only
// calls Append after Step has already validated the mutation).
func (c *CommitLog) Append(body kernel.CommitBody, timestamp uint64, causedBy *uint64) kernel.Commit {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.nextSeq
	c.nextSeq++
	id := kernel.HashCommit(c.lastHash, seq, timestamp, body)
	commit := kernel.Commit{ID: id, Prev: c.lastHash, Seq: seq, Timestamp: timestamp, Body: body, CausedBy: causedBy}
	c.lastHash = id

	if len(c.commits) >= c.capacity {
		evicted := c.commits[0]
		c.commits = c.commits[1:]
		if c.archiver != nil {
			if err := c.archiver.Archive([]kernel.Commit{evicted}); err != nil {
				log.L.WithError(err).Warn("commit archival failed, evicted commit is now unrecoverable")
			}
		}
	}
	c.commits = append(c.commits, commit)
	return commit
}

// Head returns the hash of the most recently appended commit, or the
// all-zero Genesis root if the log is empty.
func (c *CommitLog) Head() [32]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHash
}

// NextSeq returns the sequence number the next Append call will assign.
func (c *CommitLog) NextSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSeq
}

// Occupancy is the number of commits currently retained in the ring.
func (c *CommitLog) Occupancy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.commits)
}

// Since returns every retained commit with Seq >= fromSeq, in order. If
// fromSeq precedes the oldest retained commit (because older ones were
// evicted or archived), errdefs.ErrNotFound is returned: the caller asked
// to replay further back than this log can answer from its own memory.
func (c *CommitLog) Since(fromSeq uint64) ([]kernel.Commit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.commits) == 0 {
		if fromSeq == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("commitlog empty, requested seq %d: %w", fromSeq, errdefs.ErrNotFound)
	}
	oldest := c.commits[0].Seq
	if fromSeq < oldest {
		return nil, fmt.Errorf("requested seq %d older than retained head %d: %w", fromSeq, oldest, errdefs.ErrNotFound)
	}
	out := make([]kernel.Commit, 0, len(c.commits))
	for _, commit := range c.commits {
		if commit.Seq >= fromSeq {
			out = append(out, commit)
		}
	}
	return out, nil
}

// ZstdArchiver persists evicted commits as zstd-compressed frames via a
// caller-supplied sink, e.g. an append-only file or a bbolt bucket. It is
// the hardware platform's default Archiver (see plugins/hal/hardware).
type ZstdArchiver struct {
	encoder *zstd.Encoder
	sink    func([]byte) error
}

// NewZstdArchiver wraps sink with a zstd encoder. sink is called once per
// Archive invocation with the compressed frame for that batch.
func NewZstdArchiver(sink func([]byte) error) (*ZstdArchiver, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("constructing zstd encoder: %w", err)
	}
	return &ZstdArchiver{encoder: enc, sink: sink}, nil
}

func (z *ZstdArchiver) Archive(commits []kernel.Commit) error {
	var raw []byte
	for _, c := range commits {
		raw = append(raw, encodeArchivedCommit(c)...)
	}
	compressed := z.encoder.EncodeAll(raw, nil)
	return z.sink(compressed)
}

func encodeArchivedCommit(c kernel.Commit) []byte {
	body := kernel.EncodeBody(c.Body)
	out := make([]byte, 0, 56+len(body))
	out = append(out, c.ID[:]...)
	out = append(out, c.Prev[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], c.Timestamp)
	out = append(out, ts[:]...)
	out = append(out, body...)
	return out
}
