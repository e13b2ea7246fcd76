package cas

import (
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Ballots are ordered by coordinator time and must never repeat within
// one process, even when the clock stalls or steps backwards.
func TestProperty_BallotMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ballots issued later always order after earlier ones", prop.ForAll(
		func(microsSeq []int64) bool {
			i := 0
			g := NewBallotGeneratorWithClock(func() time.Time {
				micros := microsSeq[i%len(microsSeq)]
				i++
				return time.UnixMicro(micros)
			})

			prev := g.Next()
			for range microsSeq {
				next := g.Next()
				if prev.Compare(next) >= 0 {
					return false
				}
				prev = next
			}
			return true
		},
		gen.SliceOfN(16, gen.Int64Range(0, 1_000_000)),
	))

	properties.Property("timestamps are strictly increasing even on a frozen clock", prop.ForAll(
		func(fixed int64, n int) bool {
			g := NewBallotGeneratorWithClock(func() time.Time { return time.UnixMicro(fixed) })
			last := int64(-1)
			for j := 0; j < n; j++ {
				b := g.Next()
				if b.Timestamp <= last {
					return false
				}
				last = b.Timestamp
			}
			return true
		},
		gen.Int64Range(1, 1_000_000_000),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}

func TestBallotGenerator_ConcurrentUniqueness(t *testing.T) {
	g := NewBallotGenerator()

	const goroutines = 8
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[int64]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				b := g.Next()
				mu.Lock()
				if seen[b.Timestamp] {
					t.Errorf("ballot timestamp %d issued twice", b.Timestamp)
				}
				seen[b.Timestamp] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestBallot_CompareTieBreak(t *testing.T) {
	a := Ballot{Timestamp: 10}
	b := Ballot{Timestamp: 10}
	a.Nonce[15] = 1
	b.Nonce[15] = 2

	if a.Compare(b) >= 0 || b.Compare(a) <= 0 {
		t.Error("equal timestamps must tie-break on nonce bytes")
	}
	if a.Compare(a) != 0 {
		t.Error("a ballot must compare equal to itself")
	}
}
