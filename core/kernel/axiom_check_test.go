package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func genZero(ObjectType, uint64) uint32 { return 0 }

func TestCheckRejectsUnknownSlot(t *testing.T) {
	cs := NewCapabilitySpace()
	_, kind := Check(cs, 0, RightRead, ObjectEndpoint, genZero, 0)
	require.Equal(t, ErrInvalidSlot, kind)
}

func TestCheckRejectsWrongType(t *testing.T) {
	cs := NewCapabilitySpace()
	cs.Slots[0] = Capability{ObjectType: ObjectEndpoint, Perms: RightRead}
	_, kind := Check(cs, 0, RightRead, ObjectProcess, genZero, 0)
	require.Equal(t, ErrWrongType, kind)
}

func TestCheckRejectsInsufficientRights(t *testing.T) {
	cs := NewCapabilitySpace()
	cs.Slots[0] = Capability{ObjectType: ObjectEndpoint, Perms: RightRead}
	_, kind := Check(cs, 0, RightWrite, ObjectEndpoint, genZero, 0)
	require.Equal(t, ErrInsufficientRights, kind)
}

func TestCheckRejectsExpired(t *testing.T) {
	cs := NewCapabilitySpace()
	cs.Slots[0] = Capability{ObjectType: ObjectEndpoint, Perms: RightRead, ExpiresAt: 100}
	_, kind := Check(cs, 0, RightRead, ObjectEndpoint, genZero, 100)
	require.Equal(t, ErrExpired, kind)
}

func TestCheckRejectsStaleGeneration(t *testing.T) {
	cs := NewCapabilitySpace()
	cs.Slots[0] = Capability{ObjectType: ObjectEndpoint, ObjectID: 5, Perms: RightRead, Generation: 0}
	current := func(t ObjectType, id uint64) uint32 { return 1 }
	_, kind := Check(cs, 0, RightRead, ObjectEndpoint, current, 0)
	require.Equal(t, ErrObjectNotFound, kind)
}

func TestCheckAcceptsValidCapability(t *testing.T) {
	cs := NewCapabilitySpace()
	cs.Slots[0] = Capability{ObjectType: ObjectEndpoint, ObjectID: 5, Perms: RightRead | RightWrite}
	c, kind := Check(cs, 0, RightRead, ObjectEndpoint, genZero, 0)
	require.Equal(t, ErrNone, kind)
	require.Equal(t, uint64(5), c.ObjectID)
}

func TestCheckTypeWildcard(t *testing.T) {
	cs := NewCapabilitySpace()
	cs.Slots[0] = Capability{ObjectType: ObjectProcess, Perms: RightRead}
	_, kind := Check(cs, 0, RightRead, ObjectAny, genZero, 0)
	require.Equal(t, ErrNone, kind)
}
