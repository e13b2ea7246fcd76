package types

import "fmt"

// ConsistencyLevel is the number/arrangement of replicas that must
// acknowledge a read or write for it to succeed. The engine only
// validates levels; replica counting is owned by the replication
// boundary.
type ConsistencyLevel string

const (
	ConsistencyAny         ConsistencyLevel = "ANY"
	ConsistencyOne         ConsistencyLevel = "ONE"
	ConsistencyTwo         ConsistencyLevel = "TWO"
	ConsistencyThree       ConsistencyLevel = "THREE"
	ConsistencyQuorum      ConsistencyLevel = "QUORUM"
	ConsistencyAll         ConsistencyLevel = "ALL"
	ConsistencyLocalQuorum ConsistencyLevel = "LOCAL_QUORUM"
	ConsistencyEachQuorum  ConsistencyLevel = "EACH_QUORUM"
	ConsistencyLocalOne    ConsistencyLevel = "LOCAL_ONE"

	// Serial levels order conditional (CAS) rounds; they are not valid
	// for plain reads or writes.
	ConsistencySerial      ConsistencyLevel = "SERIAL"
	ConsistencyLocalSerial ConsistencyLevel = "LOCAL_SERIAL"
)

// IsValid reports whether the level is a known consistency level.
func (cl ConsistencyLevel) IsValid() bool {
	switch cl {
	case ConsistencyAny, ConsistencyOne, ConsistencyTwo, ConsistencyThree,
		ConsistencyQuorum, ConsistencyAll, ConsistencyLocalQuorum,
		ConsistencyEachQuorum, ConsistencyLocalOne,
		ConsistencySerial, ConsistencyLocalSerial:
		return true
	default:
		return false
	}
}

// IsSerial reports whether the level is a CAS-serial level.
func (cl ConsistencyLevel) IsSerial() bool {
	return cl == ConsistencySerial || cl == ConsistencyLocalSerial
}

// ValidateForWrite checks that the level can be used for a plain write.
func (cl ConsistencyLevel) ValidateForWrite() error {
	if !cl.IsValid() {
		return fmt.Errorf("types: unknown consistency level %q", string(cl))
	}
	if cl.IsSerial() {
		return fmt.Errorf("types: %s is not supported as conditional update commit consistency", cl)
	}
	return nil
}

// ValidateForRead checks that the level can be used for a read. ANY is
// write-only and EACH_QUORUM has no read semantics.
func (cl ConsistencyLevel) ValidateForRead() error {
	if !cl.IsValid() {
		return fmt.Errorf("types: unknown consistency level %q", string(cl))
	}
	switch cl {
	case ConsistencyAny, ConsistencyEachQuorum:
		return fmt.Errorf("types: %s is not supported for reads", cl)
	default:
		return nil
	}
}

// ValidateCounterForWrite checks that the level can carry counter writes.
// Counter mutations are not idempotent, so ANY (hinted handoff only) is
// rejected.
func (cl ConsistencyLevel) ValidateCounterForWrite() error {
	if err := cl.ValidateForWrite(); err != nil {
		return err
	}
	if cl == ConsistencyAny {
		return fmt.Errorf("types: consistency level ANY is not yet supported for counter tables")
	}
	return nil
}
