package kernel

// Resource limits enforced by step and the HAL, per spec section 5.
const (
	MaxMessageBytes   = 4096
	MaxMessageCaps    = 4
	SysLogCapacity    = 10_000
	CommitLogCapacity = 100_000
	MaxPendingStorage = 1000
	MaxPendingKeystore = 1000
	MaxPendingNetwork = 100
)
