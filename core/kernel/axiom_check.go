package kernel

// axiom_check is the single authority-verification function. Every syscall
// handler that names a kernel object via a slot must resolve it through
// Check before taking any effect; there is no alternative path (spec §4.2).
//
// The six obligations are enforced in order: no forged object (the slot
// lookup itself — nothing is returned that wasn't inserted into this
// cspace), type discipline, no rights escalation, expiry, generation
// (revocation), and fail-closed on any malformed input.
func Check(cs *CapabilitySpace, slot uint32, required Rights, expectType ObjectType, currentGeneration func(ObjectType, uint64) uint32, now uint64) (*Capability, ErrKind) {
	if cs == nil {
		return nil, ErrInvalidSlot
	}
	cap, ok := cs.Slots[slot]
	if !ok {
		return nil, ErrInvalidSlot
	}
	if expectType != 0 && cap.ObjectType != expectType {
		return nil, ErrWrongType
	}
	if !cap.Perms.Has(required) {
		return nil, ErrInsufficientRights
	}
	if cap.ExpiresAt != 0 && now >= cap.ExpiresAt {
		return nil, ErrExpired
	}
	if currentGeneration != nil {
		if currentGeneration(cap.ObjectType, cap.ObjectID) > cap.Generation {
			return nil, ErrObjectNotFound
		}
	}
	out := cap
	return &out, ErrNone
}
