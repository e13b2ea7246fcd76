// Package cas implements the conditional-write path: condition
// evaluation, ballot generation, and the single-round compare-and-swap
// executor.
package cas

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ballot is a globally-ordered, time-derived proposal identifier.
// Competing proposals for the same partition+row are ordered by
// (Timestamp, Nonce); the nonce breaks ties between coordinators that
// picked the same microsecond.
type Ballot struct {
	// Timestamp is the coordinator timestamp in microseconds.
	Timestamp int64

	// Nonce distinguishes coordinators within one microsecond.
	Nonce uuid.UUID
}

// Compare orders two ballots. Returns a negative number, zero, or a
// positive number when b sorts before, equal to, or after o.
func (b Ballot) Compare(o Ballot) int {
	switch {
	case b.Timestamp < o.Timestamp:
		return -1
	case b.Timestamp > o.Timestamp:
		return 1
	default:
		return bytes.Compare(b.Nonce[:], o.Nonce[:])
	}
}

func (b Ballot) String() string {
	return b.Nonce.String()
}

// BallotGenerator issues strictly increasing ballots within one process.
// When the wall clock does not advance past the last issued timestamp,
// the generator bumps it by one microsecond, so a ballot is never reused
// within one process tick. Cross-coordinator collisions are resolved by
// the consensus layer's ballot ordering, not here.
type BallotGenerator struct {
	mu         sync.Mutex
	lastMicros int64
	now        func() time.Time
}

// NewBallotGenerator creates a generator using the wall clock.
func NewBallotGenerator() *BallotGenerator {
	return &BallotGenerator{now: time.Now}
}

// NewBallotGeneratorWithClock creates a generator with an injected clock,
// for tests.
func NewBallotGeneratorWithClock(now func() time.Time) *BallotGenerator {
	return &BallotGenerator{now: now}
}

// Next issues a fresh ballot.
func (g *BallotGenerator) Next() Ballot {
	g.mu.Lock()
	defer g.mu.Unlock()

	micros := g.now().UnixMicro()
	if micros <= g.lastMicros {
		micros = g.lastMicros + 1
	}
	g.lastMicros = micros

	return Ballot{Timestamp: micros, Nonce: uuid.New()}
}
