package axiomlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroos-project/zeroos/core/kernel"
)

func TestSysLogRingEviction(t *testing.T) {
	sl := NewSysLog(2)
	sl.Append(SysEvent{Sender: 1})
	sl.Append(SysEvent{Sender: 2})
	sl.Append(SysEvent{Sender: 3})
	require.Equal(t, 2, sl.Occupancy())
	require.EqualValues(t, 3, sl.Total())
	recent := sl.Recent(10)
	require.Len(t, recent, 2)
	require.Equal(t, uint64(2), recent[0].Sender)
	require.Equal(t, uint64(3), recent[1].Sender)
}

func TestCommitLogChainsHashes(t *testing.T) {
	cl := NewCommitLog(10)
	c1 := cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 1, nil)
	require.Equal(t, [32]byte{}, c1.Prev)
	c2 := cl.Append(kernel.CommitBody{Kind: kernel.KindProcessCreated, ProcessCreated: &kernel.ProcessCreated{PID: 1}}, 2, nil)
	require.Equal(t, c1.ID, c2.Prev)
	require.Equal(t, c2.ID, cl.Head())
}

func TestCommitLogEvictionCallsArchiver(t *testing.T) {
	var archived []kernel.Commit
	cl := NewCommitLog(1).WithArchiver(archiverFunc(func(cs []kernel.Commit) error {
		archived = append(archived, cs...)
		return nil
	}))
	cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 1, nil)
	cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 2, nil)
	require.Len(t, archived, 1)
	require.Equal(t, 1, cl.Occupancy())
}

type archiverFunc func([]kernel.Commit) error

func (f archiverFunc) Archive(cs []kernel.Commit) error { return f(cs) }

func TestCommitLogSinceRejectsEvictedRange(t *testing.T) {
	cl := NewCommitLog(1)
	cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 1, nil)
	cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 2, nil)
	_, err := cl.Since(0)
	require.Error(t, err)
}

func TestCommitLogSinceReturnsTail(t *testing.T) {
	cl := NewCommitLog(10)
	cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 1, nil)
	cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 2, nil)
	cl.Append(kernel.CommitBody{Kind: kernel.KindGenesis}, 3, nil)
	out, err := cl.Since(1)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestStorePersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "axiom.db"))
	require.NoError(t, err)
	defer store.Close()

	cl := NewCommitLog(10)
	c1 := cl.Append(kernel.CommitBody{Kind: kernel.KindProcessCreated, ProcessCreated: &kernel.ProcessCreated{PID: 1, Name: "init"}}, 1, nil)
	require.NoError(t, store.Append(c1))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, c1.ID, loaded[0].ID)

	head, err := store.Head()
	require.NoError(t, err)
	require.Equal(t, c1.ID, head)
}

func TestStoreLoadCommitsDecodesBodies(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "axiom.db"))
	require.NoError(t, err)
	defer store.Close()

	cl := NewCommitLog(10)
	c1 := cl.Append(kernel.CommitBody{Kind: kernel.KindProcessCreated, ProcessCreated: &kernel.ProcessCreated{PID: 1, Name: "init"}}, 1, nil)
	require.NoError(t, store.Append(c1))
	c2 := cl.Append(kernel.CommitBody{Kind: kernel.KindEndpointCreated, EndpointCreated: &kernel.EndpointCreated{ID: 1, Owner: 1}}, 2, nil)
	require.NoError(t, store.Append(c2))

	commits, err := store.LoadCommits()
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Equal(t, c1.ID, commits[0].ID)
	require.Equal(t, "init", commits[0].Body.ProcessCreated.Name)
	require.Equal(t, c2.ID, commits[1].ID)
	require.Equal(t, uint64(1), commits[1].Body.EndpointCreated.Owner)
}

