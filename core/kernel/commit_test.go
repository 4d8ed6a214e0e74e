package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashCommitIsDeterministic(t *testing.T) {
	body := CommitBody{Kind: KindProcessCreated, ProcessCreated: &ProcessCreated{PID: 7, Parent: 1, Name: "svc"}}
	var prev [32]byte
	a := HashCommit(prev, 3, 100, body)
	b := HashCommit(prev, 3, 100, body)
	require.Equal(t, a, b)
}

func TestHashCommitDivergesOnAnyField(t *testing.T) {
	var prev [32]byte
	body := CommitBody{Kind: KindProcessCreated, ProcessCreated: &ProcessCreated{PID: 7, Parent: 1, Name: "svc"}}
	base := HashCommit(prev, 3, 100, body)

	diffSeq := HashCommit(prev, 4, 100, body)
	require.NotEqual(t, base, diffSeq)

	diffTS := HashCommit(prev, 3, 101, body)
	require.NotEqual(t, base, diffTS)

	body2 := CommitBody{Kind: KindProcessCreated, ProcessCreated: &ProcessCreated{PID: 8, Parent: 1, Name: "svc"}}
	diffBody := HashCommit(prev, 3, 100, body2)
	require.NotEqual(t, base, diffBody)

	prev2 := [32]byte{1}
	diffPrev := HashCommit(prev2, 3, 100, body)
	require.NotEqual(t, base, diffPrev)
}

func TestEncodeBodyCapRemovedCarriesRevokesFlag(t *testing.T) {
	del := EncodeBody(CommitBody{Kind: KindCapRemoved, CapRemoved: &CapRemoved{PID: 1, Slot: 2, Revokes: false}})
	rev := EncodeBody(CommitBody{Kind: KindCapRemoved, CapRemoved: &CapRemoved{PID: 1, Slot: 2, Revokes: true}})
	require.NotEqual(t, del, rev)
	require.Equal(t, len(del), len(rev))
}

func TestFoldFNV32Is32Bytes(t *testing.T) {
	out := foldFNV32([]byte("anything"))
	require.Len(t, out, 32)
}

func TestDecodeBodyRoundTripsEveryKind(t *testing.T) {
	cases := []CommitBody{
		{Kind: KindGenesis},
		{Kind: KindProcessCreated, ProcessCreated: &ProcessCreated{PID: 7, Parent: 1, Name: "svc"}},
		{Kind: KindProcessExited, ProcessExited: &ProcessExited{PID: 7, Code: -3}},
		{Kind: KindProcessFaulted, ProcessFaulted: &ProcessFaulted{PID: 7, Reason: "badarg", Desc: "slot out of range"}},
		{Kind: KindProcessKilled, ProcessKilled: &ProcessKilled{PID: 7, By: 0}},
		{Kind: KindCapInserted, CapInserted: &CapInserted{PID: 2, Slot: 1, CapID: 9, ObjectType: ObjectEndpoint, ObjectID: 4, Perms: RightRead | RightWrite}},
		{Kind: KindCapRemoved, CapRemoved: &CapRemoved{PID: 2, Slot: 1, Revokes: true}},
		{Kind: KindCapGranted, CapGranted: &CapGranted{FromPID: 1, ToPID: 2, FromSlot: 0, ToSlot: 1, NewCapID: 10, Perms: RightWrite}},
		{Kind: KindEndpointCreated, EndpointCreated: &EndpointCreated{ID: 4, Owner: 2}},
		{Kind: KindEndpointDestroyed, EndpointDestroyed: &EndpointDestroyed{ID: 4}},
		{Kind: KindMessageSent, MessageSent: &MessageSent{FromPID: 1, ToEndpoint: 4, Tag: 0x2000, Size: 12}},
	}

	for _, body := range cases {
		encoded := EncodeBody(body)
		decoded, err := DecodeBody(encoded)
		require.NoError(t, err)
		require.Equal(t, body, decoded)
		require.Equal(t, encoded, EncodeBody(decoded))
	}
}

func TestDecodeBodyRejectsUnknownDiscriminant(t *testing.T) {
	_, err := DecodeBody([]byte{0xFF})
	require.Error(t, err)
}

func TestDecodeBodyRejectsTruncatedInput(t *testing.T) {
	full := EncodeBody(CommitBody{Kind: KindProcessCreated, ProcessCreated: &ProcessCreated{PID: 7, Parent: 1, Name: "svc"}})
	_, err := DecodeBody(full[:len(full)-1])
	require.Error(t, err)
}
