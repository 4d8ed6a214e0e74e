package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeroos-project/zeroos/core/hal/halmock"
	"github.com/zeroos-project/zeroos/core/kernel"
)

func bootstrapGateway(t *testing.T) *Gateway {
	t.Helper()
	g := New(halmock.New())
	ctx := context.Background()
	res := g.Dispatch(ctx, kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("supervisor")})
	require.Equal(t, int64(0), res.Code)
	res = g.Dispatch(ctx, kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("init")})
	require.Equal(t, int64(0), res.Code)
	return g
}

func TestDispatchAppliesSuccessfulCommits(t *testing.T) {
	g := bootstrapGateway(t)
	ctx := context.Background()
	res := g.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysCreateEndpoint})
	require.Equal(t, int64(0), res.Code)
	require.Len(t, g.State().Endpoints, 1)
}

func TestDispatchRejectsErrorsWithoutMutatingState(t *testing.T) {
	g := bootstrapGateway(t)
	ctx := context.Background()
	before := g.State()
	res := g.Dispatch(ctx, kernel.InitPID+5, kernel.Syscall{Num: kernel.SysCreateEndpoint})
	require.Less(t, res.Code, int64(0))
	after := g.State()
	require.Equal(t, len(before.Processes), len(after.Processes))
	require.Equal(t, len(before.Endpoints), len(after.Endpoints))
}

func TestDispatchLoadBinaryResolvesThroughHAL(t *testing.T) {
	h := halmock.New()
	h.Binaries["svc"] = []byte{0x01, 0x02, 0x03}
	g := New(h)
	ctx := context.Background()
	g.Dispatch(ctx, kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("supervisor")})
	g.Dispatch(ctx, kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("init")})

	res := g.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysLoadBinary, Data: []byte("svc")})
	require.Equal(t, int64(3), res.Code)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, res.Data)
}

func TestDispatchLoadBinaryMissingIsNotSupported(t *testing.T) {
	g := bootstrapGateway(t)
	ctx := context.Background()
	res := g.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysLoadBinary, Data: []byte("missing")})
	require.Equal(t, kernel.ErrNotSupported.Code(), res.Code)
}

func TestDispatchAsyncStorageBypassesStepButAllocatesRequestID(t *testing.T) {
	g := bootstrapGateway(t)
	ctx := context.Background()
	res := g.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysAsyncStorageBase, Args: [4]uint32{1}, Data: []byte("key")})
	require.GreaterOrEqual(t, res.Code, int64(0))
}

func TestCommitHeadAdvancesWithState(t *testing.T) {
	g := bootstrapGateway(t)
	ctx := context.Background()
	h0 := g.CommitHead()
	g.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysCreateEndpoint})
	h1 := g.CommitHead()
	require.NotEqual(t, h0, h1)
}
