package kernel

// Syscall numbers, grouped by range per spec §4.1.
const (
	SysDebug        uint32 = 0x01
	SysYield        uint32 = 0x02
	SysExit         uint32 = 0x03
	SysTime         uint32 = 0x04
	SysConsoleWrite uint32 = 0x05

	SysCreateEndpoint    uint32 = 0x10
	SysKill              uint32 = 0x11
	SysRegisterProcess   uint32 = 0x12
	SysCreateEndpointFor uint32 = 0x13
	SysLoadBinary        uint32 = 0x14
	SysSpawnProcess      uint32 = 0x15

	SysGrant  uint32 = 0x30
	SysRevoke uint32 = 0x31
	SysDelete uint32 = 0x32
	SysInspect uint32 = 0x33
	SysDerive uint32 = 0x34

	SysSend    uint32 = 0x40
	SysSendCap uint32 = 0x41
	SysRecv    uint32 = 0x42
	SysCall    uint32 = 0x43

	SysPs uint32 = 0x50

	SysAsyncStorageBase  uint32 = 0x70
	SysAsyncKeystoreBase uint32 = 0x80
	SysAsyncNetworkBase  uint32 = 0x90
)

// Syscall is one request admitted to step. Data is the optional side-channel
// buffer (≤16356 bytes per the ABI; step itself only enforces the 4096-byte
// message-body limit, which is a narrower application-level rule).
type Syscall struct {
	Num  uint32
	Args [4]uint32
	Data []byte
	Caps []uint32 // slot indices; only SendCap reads them
}

// Result is the outcome of one step invocation: a stable ABI result word,
// optional response data, and the commits admitted (possibly empty).
type Result struct {
	Code    int64
	Data    []byte
	Commits []CommitBody
}

func errResult(kind ErrKind) Result {
	return Result{Code: kind.Code()}
}

func okResult(code int64, data []byte, commits ...CommitBody) Result {
	return Result{Code: code, Data: data, Commits: commits}
}
