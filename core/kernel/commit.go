package kernel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
)

// CommitKind discriminates the closed set of mutation variants a Commit
// body may carry. The set is closed by design (spec §4.3): adding a new
// mutation kind is a versioning event, not a runtime extension point.
type CommitKind uint8

const (
	KindGenesis CommitKind = iota + 1
	KindProcessCreated
	KindProcessExited
	KindProcessFaulted
	KindProcessKilled
	KindCapInserted
	KindCapRemoved
	KindCapGranted
	KindEndpointCreated
	KindEndpointDestroyed
	KindMessageSent
)

// CommitBody is the tagged union of mutation payloads. Exactly one of the
// typed fields is populated, selected by Kind.
type CommitBody struct {
	Kind CommitKind

	ProcessCreated   *ProcessCreated
	ProcessExited    *ProcessExited
	ProcessFaulted   *ProcessFaulted
	ProcessKilled    *ProcessKilled
	CapInserted      *CapInserted
	CapRemoved       *CapRemoved
	CapGranted       *CapGranted
	EndpointCreated  *EndpointCreated
	EndpointDestroyed *EndpointDestroyed
	MessageSent      *MessageSent
}

type ProcessCreated struct {
	PID    uint64
	Parent uint64
	Name   string
}

type ProcessExited struct {
	PID  uint64
	Code int32
}

type ProcessFaulted struct {
	PID    uint64
	Reason string
	Desc   string
}

type ProcessKilled struct {
	PID uint64
	By  uint64
}

type CapInserted struct {
	PID        uint64
	Slot       uint32
	CapID      uint64
	ObjectType ObjectType
	ObjectID   uint64
	Perms      Rights
}

// CapRemoved records a capability leaving a slot. Revokes is set only when
// the removal came from Revoke (spec §4.1): it is the bit apply_commit uses
// to bump the target object's generation so that other processes' caps on
// the same object go stale on their next axiom_check. Delete and the
// per-slot cleanup emitted by Exit/Kill leave it false — per spec §4.1,
// "Delete(slot) removes only the caller's cap", so it must not invalidate
// anyone else's derived capability on the same object.
type CapRemoved struct {
	PID     uint64
	Slot    uint32
	Revokes bool
}

type CapGranted struct {
	FromPID  uint64
	ToPID    uint64
	FromSlot uint32
	ToSlot   uint32
	NewCapID uint64
	Perms    Rights
}

type EndpointCreated struct {
	ID    uint64
	Owner uint64
}

type EndpointDestroyed struct {
	ID uint64
}

type MessageSent struct {
	FromPID    uint64
	ToEndpoint uint64
	Tag        uint32
	Size       uint32
}

// Commit is an immutable, hash-chained record of a single successful state
// mutation (spec §3). Genesis has Seq 0 and an all-zero Prev.
type Commit struct {
	ID        [32]byte
	Prev      [32]byte
	Seq       uint64
	Timestamp uint64
	Body      CommitBody
	CausedBy  *uint64 // SysEvent id, if any
}

// EncodeBody renders the fixed little-endian byte layout for a commit body
// that both HashCommit and the two-log on-disk format must agree on (spec
// §3's id formula, §6's on-disk record layout).
func EncodeBody(b CommitBody) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(b.Kind))
	switch b.Kind {
	case KindGenesis:
		// no fields
	case KindProcessCreated:
		v := b.ProcessCreated
		writeU64(&buf, v.PID)
		writeU64(&buf, v.Parent)
		writeString(&buf, v.Name)
	case KindProcessExited:
		v := b.ProcessExited
		writeU64(&buf, v.PID)
		writeI32(&buf, v.Code)
	case KindProcessFaulted:
		v := b.ProcessFaulted
		writeU64(&buf, v.PID)
		writeString(&buf, v.Reason)
		writeString(&buf, v.Desc)
	case KindProcessKilled:
		v := b.ProcessKilled
		writeU64(&buf, v.PID)
		writeU64(&buf, v.By)
	case KindCapInserted:
		v := b.CapInserted
		writeU64(&buf, v.PID)
		writeU32(&buf, v.Slot)
		writeU64(&buf, v.CapID)
		buf.WriteByte(byte(v.ObjectType))
		writeU64(&buf, v.ObjectID)
		buf.WriteByte(byte(v.Perms))
	case KindCapRemoved:
		v := b.CapRemoved
		writeU64(&buf, v.PID)
		writeU32(&buf, v.Slot)
		writeBool(&buf, v.Revokes)
	case KindCapGranted:
		v := b.CapGranted
		writeU64(&buf, v.FromPID)
		writeU64(&buf, v.ToPID)
		writeU32(&buf, v.FromSlot)
		writeU32(&buf, v.ToSlot)
		writeU64(&buf, v.NewCapID)
		buf.WriteByte(byte(v.Perms))
	case KindEndpointCreated:
		v := b.EndpointCreated
		writeU64(&buf, v.ID)
		writeU64(&buf, v.Owner)
	case KindEndpointDestroyed:
		v := b.EndpointDestroyed
		writeU64(&buf, v.ID)
	case KindMessageSent:
		v := b.MessageSent
		writeU64(&buf, v.FromPID)
		writeU64(&buf, v.ToEndpoint)
		writeU32(&buf, v.Tag)
		writeU32(&buf, v.Size)
	}
	return buf.Bytes()
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeI32(buf *bytes.Buffer, v int32) {
	writeU32(buf, uint32(v))
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

// DecodeBody is EncodeBody's inverse, used by the hardware platform to
// reconstruct a Commit's Body from axiomlog.Store's persisted bytes
// across a reboot (store.go records EncodeBody's output verbatim, not a
// second independent encoding).
func DecodeBody(data []byte) (CommitBody, error) {
	r := bytes.NewReader(data)
	kindByte, err := r.ReadByte()
	if err != nil {
		return CommitBody{}, fmt.Errorf("decoding commit body: reading discriminant: %w", err)
	}
	kind := CommitKind(kindByte)
	body := CommitBody{Kind: kind}

	switch kind {
	case KindGenesis:
		// no fields
	case KindProcessCreated:
		v := &ProcessCreated{}
		if v.PID, err = readU64(r); err != nil {
			return body, err
		}
		if v.Parent, err = readU64(r); err != nil {
			return body, err
		}
		if v.Name, err = readString(r); err != nil {
			return body, err
		}
		body.ProcessCreated = v
	case KindProcessExited:
		v := &ProcessExited{}
		if v.PID, err = readU64(r); err != nil {
			return body, err
		}
		code, err := readU32(r)
		if err != nil {
			return body, err
		}
		v.Code = int32(code)
		body.ProcessExited = v
	case KindProcessFaulted:
		v := &ProcessFaulted{}
		if v.PID, err = readU64(r); err != nil {
			return body, err
		}
		if v.Reason, err = readString(r); err != nil {
			return body, err
		}
		if v.Desc, err = readString(r); err != nil {
			return body, err
		}
		body.ProcessFaulted = v
	case KindProcessKilled:
		v := &ProcessKilled{}
		if v.PID, err = readU64(r); err != nil {
			return body, err
		}
		if v.By, err = readU64(r); err != nil {
			return body, err
		}
		body.ProcessKilled = v
	case KindCapInserted:
		v := &CapInserted{}
		if v.PID, err = readU64(r); err != nil {
			return body, err
		}
		if v.Slot, err = readU32(r); err != nil {
			return body, err
		}
		if v.CapID, err = readU64(r); err != nil {
			return body, err
		}
		otype, err := r.ReadByte()
		if err != nil {
			return body, fmt.Errorf("decoding CapInserted.ObjectType: %w", err)
		}
		v.ObjectType = ObjectType(otype)
		if v.ObjectID, err = readU64(r); err != nil {
			return body, err
		}
		perms, err := r.ReadByte()
		if err != nil {
			return body, fmt.Errorf("decoding CapInserted.Perms: %w", err)
		}
		v.Perms = Rights(perms)
		body.CapInserted = v
	case KindCapRemoved:
		v := &CapRemoved{}
		if v.PID, err = readU64(r); err != nil {
			return body, err
		}
		if v.Slot, err = readU32(r); err != nil {
			return body, err
		}
		revokes, err := r.ReadByte()
		if err != nil {
			return body, fmt.Errorf("decoding CapRemoved.Revokes: %w", err)
		}
		v.Revokes = revokes != 0
		body.CapRemoved = v
	case KindCapGranted:
		v := &CapGranted{}
		if v.FromPID, err = readU64(r); err != nil {
			return body, err
		}
		if v.ToPID, err = readU64(r); err != nil {
			return body, err
		}
		if v.FromSlot, err = readU32(r); err != nil {
			return body, err
		}
		if v.ToSlot, err = readU32(r); err != nil {
			return body, err
		}
		if v.NewCapID, err = readU64(r); err != nil {
			return body, err
		}
		perms, err := r.ReadByte()
		if err != nil {
			return body, fmt.Errorf("decoding CapGranted.Perms: %w", err)
		}
		v.Perms = Rights(perms)
		body.CapGranted = v
	case KindEndpointCreated:
		v := &EndpointCreated{}
		if v.ID, err = readU64(r); err != nil {
			return body, err
		}
		if v.Owner, err = readU64(r); err != nil {
			return body, err
		}
		body.EndpointCreated = v
	case KindEndpointDestroyed:
		v := &EndpointDestroyed{}
		if v.ID, err = readU64(r); err != nil {
			return body, err
		}
		body.EndpointDestroyed = v
	case KindMessageSent:
		v := &MessageSent{}
		if v.FromPID, err = readU64(r); err != nil {
			return body, err
		}
		if v.ToEndpoint, err = readU64(r); err != nil {
			return body, err
		}
		if v.Tag, err = readU32(r); err != nil {
			return body, err
		}
		if v.Size, err = readU32(r); err != nil {
			return body, err
		}
		body.MessageSent = v
	default:
		return body, fmt.Errorf("decoding commit body: unknown discriminant %d", kindByte)
	}
	return body, nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("reading u64: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("reading u32: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", fmt.Errorf("reading string length: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("reading string body: %w", err)
	}
	return string(b), nil
}

// HashCommit computes id = H(prev || seq || ts || body_discriminant ||
// body_fields) using FNV-1a folded to 32 bytes (spec §3, §9). FNV-1a is the
// spec's named baseline, chosen there for no_std portability and
// deterministic, dependency-free hashing; see SPEC_FULL.md for why no
// example-pack library fits this formula better than hash/fnv.
func HashCommit(prev [32]byte, seq, timestamp uint64, body CommitBody) [32]byte {
	var input bytes.Buffer
	input.Write(prev[:])
	writeU64(&input, seq)
	writeU64(&input, timestamp)
	input.Write(EncodeBody(body))
	return foldFNV32(input.Bytes())
}

// foldFNV32 produces a 32-byte digest by running four independent FNV-1a-64
// passes, each seeded with a distinct domain-separation prefix, and
// concatenating the results. This keeps the whole construction inside
// hash/fnv (no_std-friendly, zero third-party dependency) while giving
// replay verification a wider, harder-to-collide digest than a single
// 8-byte FNV-1a sum would.
func foldFNV32(data []byte) [32]byte {
	var out [32]byte
	for lane := 0; lane < 4; lane++ {
		h := fnv.New64a()
		h.Write([]byte{byte(lane)})
		h.Write(data)
		sum := h.Sum(nil)
		copy(out[lane*8:(lane+1)*8], sum)
	}
	return out
}
