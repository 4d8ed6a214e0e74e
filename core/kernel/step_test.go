package kernel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func bootstrap(t *testing.T) *KernelState {
	t.Helper()
	state := NewKernelState()
	res := Step(state, SupervisorPID, Syscall{Num: SysRegisterProcess, Data: []byte("supervisor")}, 1)
	require.Equal(t, int64(0), res.Code)
	res = Step(state, SupervisorPID, Syscall{Num: SysRegisterProcess, Data: []byte("init")}, 2)
	require.Equal(t, int64(0), res.Code)
	require.Contains(t, state.Processes, InitPID)
	return state
}

// Testable Property 1: Step is pure — identical inputs on independent
// clones produce byte-identical results and post-states.
func TestStepIsPure(t *testing.T) {
	state := bootstrap(t)
	a := state.Clone()
	b := state.Clone()
	ra := Step(a, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	rb := Step(b, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	require.Equal(t, ra.Code, rb.Code)
	require.Equal(t, ra.Data, rb.Data)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("clones diverged after identical Step calls: %s", diff)
	}
}

// Testable Property 9: bootstrap exception — exactly two supervisor-sourced
// RegisterProcess calls are admitted; a third is rejected.
func TestBootstrapExceptionIsExhausted(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, SupervisorPID, Syscall{Num: SysRegisterProcess, Data: []byte("ghost")}, 3)
	require.Equal(t, ErrInsufficientRights.Code(), res.Code)
}

func TestRegisterProcessAssignsWellKnownPIDs(t *testing.T) {
	state := NewKernelState()
	res := Step(state, SupervisorPID, Syscall{Num: SysRegisterProcess, Data: []byte("sup")}, 1)
	require.Equal(t, int64(0), res.Code)
	require.Contains(t, state.Processes, SupervisorPID)

	res = Step(state, SupervisorPID, Syscall{Num: SysRegisterProcess, Data: []byte("init")}, 1)
	require.Equal(t, int64(0), res.Code)
	require.Contains(t, state.Processes, InitPID)
}

func TestInitCanSpawnAfterBootstrap(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, InitPID, Syscall{Num: SysRegisterProcess, Data: []byte("svc")}, 10)
	require.Equal(t, int64(0), res.Code)
	require.Len(t, state.Processes, 3)
}

func TestNonInitCannotRegisterProcess(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, InitPID+1, Syscall{Num: SysRegisterProcess, Data: []byte("rogue")}, 10)
	require.Equal(t, ErrInsufficientRights.Code(), res.Code)
}

func TestCreateEndpointInsertsCapability(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	require.Equal(t, int64(0), res.Code)
	require.Len(t, res.Commits, 2)
	require.Equal(t, KindEndpointCreated, res.Commits[0].Kind)
	require.Equal(t, KindCapInserted, res.Commits[1].Kind)
	cs := state.CSpaces[InitPID]
	require.Len(t, cs.Slots, 1)
}

// Scenario B (spec §8): Grant fails with InsufficientRights when the
// source capability lacks the grant bit, even though the requested
// perms are a subset of what the source otherwise allows.
func TestGrantRequiresGrantBitOnSource(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	cs := state.CSpaces[InitPID]
	var slot uint32
	for s, c := range cs.Slots {
		slot = s
		c.Perms = RightRead
		cs.Slots[s] = c
	}
	res := Step(state, InitPID, Syscall{Num: SysGrant, Args: [4]uint32{slot, uint32(InitPID + 10), uint32(RightRead | RightWrite)}}, 11)
	require.Equal(t, ErrInsufficientRights.Code(), res.Code)
}

func TestGrantAttenuatesPerms(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysRegisterProcess, Data: []byte("svc")}, 10)
	targetPID := uint64(2)
	Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 11)
	cs := state.CSpaces[InitPID]
	var slot uint32
	for s := range cs.Slots {
		slot = s
	}
	res := Step(state, InitPID, Syscall{Num: SysGrant, Args: [4]uint32{slot, uint32(targetPID), uint32(RightRead | RightWrite)}}, 12)
	require.Equal(t, int64(0), res.Code)
	granted := res.Commits[1].CapInserted
	require.Equal(t, RightRead|RightWrite, granted.Perms) // grant bit withheld by requester choice, but source had it
}

func TestRevokeBumpsGenerationAndClearsLiveSlot(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	cs := state.CSpaces[InitPID]
	var slot uint32
	var c Capability
	for s, cap := range cs.Slots {
		slot, c = s, cap
	}
	key := ObjectKey{Type: c.ObjectType, ID: c.ObjectID}
	genBefore := state.Generations[key]

	res := Step(state, InitPID, Syscall{Num: SysRevoke, Args: [4]uint32{slot}}, 11)
	require.Equal(t, int64(0), res.Code)
	require.True(t, res.Commits[0].CapRemoved.Revokes)

	_, stillPresent := cs.Slots[slot]
	require.False(t, stillPresent, "revoked slot must be cleared from the live cspace, not just flagged in the commit")
	require.Equal(t, genBefore+1, state.Generations[key], "revoke must bump the live object generation, not just the replayed one")
}

func TestDeleteDoesNotSetRevokesFlagAndClearsLiveSlot(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	cs := state.CSpaces[InitPID]
	var slot uint32
	for s := range cs.Slots {
		slot = s
	}
	res := Step(state, InitPID, Syscall{Num: SysDelete, Args: [4]uint32{slot}}, 11)
	require.Equal(t, int64(0), res.Code)
	require.False(t, res.Commits[0].CapRemoved.Revokes)

	_, stillPresent := cs.Slots[slot]
	require.False(t, stillPresent, "deleted slot must be cleared from the live cspace")
}

func TestSendRecvRoundTrip(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	var slot uint32
	for s := range state.CSpaces[InitPID].Slots {
		slot = s
	}
	_ = res
	sendRes := Step(state, InitPID, Syscall{Num: SysSend, Args: [4]uint32{slot, 42}, Data: []byte("hello")}, 11)
	require.Equal(t, int64(0), sendRes.Code)
	require.Len(t, sendRes.Commits, 1)
	require.Equal(t, KindMessageSent, sendRes.Commits[0].Kind)

	recvRes := Step(state, InitPID, Syscall{Num: SysRecv, Args: [4]uint32{slot}}, 12)
	require.Equal(t, int64(0), recvRes.Code)
	require.Empty(t, recvRes.Commits)
}

func TestRecvOnEmptyQueueBlocksWithoutCommit(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	var slot uint32
	for s := range state.CSpaces[InitPID].Slots {
		slot = s
	}
	res := Step(state, InitPID, Syscall{Num: SysRecv, Args: [4]uint32{slot}}, 11)
	require.Equal(t, int64(1), res.Code) // WouldBlock
	require.Empty(t, res.Commits)
	require.Equal(t, Blocked, state.Processes[InitPID].State)
}

func TestSendWakesBlockedOwner(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysRegisterProcess, Data: []byte("svc")}, 10)
	peer := uint64(2)
	epRes := Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 11)
	_ = epRes
	var initSlot uint32
	for s := range state.CSpaces[InitPID].Slots {
		initSlot = s
	}
	Step(state, InitPID, Syscall{Num: SysRecv, Args: [4]uint32{initSlot}}, 12)
	require.Equal(t, Blocked, state.Processes[InitPID].State)

	// Grant the peer a write cap on the same endpoint so it can Send.
	grantRes := Step(state, InitPID, Syscall{Num: SysGrant, Args: [4]uint32{initSlot, uint32(peer), uint32(RightWrite | RightGrant)}}, 13)
	require.Equal(t, int64(0), grantRes.Code)
	var peerSlot uint32
	for s := range state.CSpaces[peer].Slots {
		peerSlot = s
	}
	Step(state, peer, Syscall{Num: SysSend, Args: [4]uint32{peerSlot, 1}, Data: []byte("x")}, 14)
	require.Equal(t, Running, state.Processes[InitPID].State)
}

func TestCallAlwaysReturnsWouldBlock(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	var slot uint32
	for s := range state.CSpaces[InitPID].Slots {
		slot = s
	}
	res := Step(state, InitPID, Syscall{Num: SysCall, Args: [4]uint32{slot, 1}, Data: []byte("ping")}, 11)
	require.Equal(t, int64(1), res.Code)
	require.Len(t, res.Commits, 1)
}

func TestExitDropsAllCapsAndDestroysOwnedEndpoints(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysRegisterProcess, Data: []byte("svc")}, 10)
	child := uint64(2)
	Step(state, child, Syscall{Num: SysCreateEndpoint}, 11)
	require.Len(t, state.Endpoints, 1)

	res := Step(state, child, Syscall{Num: SysExit, Args: [4]uint32{0}}, 12)
	require.Equal(t, int64(0), res.Code)
	require.Equal(t, Zombie, state.Processes[child].State)
	require.Empty(t, state.Endpoints)
	require.Empty(t, state.CSpaces[child].Slots)
}

func TestMessageTooLargeRejected(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysCreateEndpoint}, 10)
	var slot uint32
	for s := range state.CSpaces[InitPID].Slots {
		slot = s
	}
	big := make([]byte, MaxMessageBytes+1)
	res := Step(state, InitPID, Syscall{Num: SysSend, Args: [4]uint32{slot, 1}, Data: big}, 11)
	require.Equal(t, ErrMessageTooLarge.Code(), res.Code)
	require.Empty(t, res.Commits)
}

func TestInvalidSlotFailsClosed(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, InitPID, Syscall{Num: SysInspect, Args: [4]uint32{999}}, 10)
	require.Equal(t, ErrInvalidSlot.Code(), res.Code)
}

func TestKillRequiresWriteCapabilityOnTarget(t *testing.T) {
	state := bootstrap(t)
	Step(state, InitPID, Syscall{Num: SysRegisterProcess, Data: []byte("victim")}, 10)
	Step(state, InitPID, Syscall{Num: SysRegisterProcess, Data: []byte("bystander")}, 10)
	bystander := uint64(3)
	res := Step(state, bystander, Syscall{Num: SysKill, Args: [4]uint32{2}}, 11)
	require.Equal(t, ErrInsufficientRights.Code(), res.Code)
}

func TestInitCannotBeKilledByOrdinaryProcess(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, uint64(99), Syscall{Num: SysKill, Args: [4]uint32{uint32(InitPID)}}, 10)
	require.Equal(t, ErrInsufficientRights.Code(), res.Code)
}

// Scenario: errors never produce commits.
func TestErrorsProduceZeroCommits(t *testing.T) {
	state := bootstrap(t)
	res := Step(state, InitPID, Syscall{Num: SysGrant, Args: [4]uint32{0, 5, 0}}, 10)
	require.Less(t, res.Code, int64(0))
	require.Empty(t, res.Commits)
}
