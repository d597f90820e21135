// Package admission implements the worker-side memory admission gate: the
// "is it safe to start one more task" decision a worker makes before
// running each task. The gate is deliberately racy across workers on the
// same host; that race is accepted, not fixed (see Gate.Admit doc comment).
package admission

import "time"

// BackoffInterval is how long a worker sleeps between re-gates after a
// refusal. 60s in the original's sleep(60); the comment there called it
// "arbitrary... could be much lower," so we keep the same value rather
// than invent a new one.
const BackoffInterval = 60 * time.Second

// Mode selects between a generic floor check and a size-aware one.
type Mode int

const (
	Generic Mode = iota
	Specific
)

// Prober reports current free memory. The one concrete implementation
// (MeminfoProber) is intentionally small -- memcheck is specified only at
// this interface.
type Prober interface {
	FreeKiB() (uint64, error)
}

// Gate is the admission decision for one worker.
type Gate struct {
	Mode     Mode
	MaxKiB   uint64 // only used in Specific mode
	FloorKiB uint64 // safety floor; refuse if free (minus MaxKiB) would dip below this
	Prober   Prober
}

// NewGate builds a Gate. The mode is derived from maxKiB: 0 selects
// Generic, anything else Specific, matching the original's memcheck_flag derivation
// ("max_task_size > 0 means specific info").
func NewGate(maxKiB, floorKiB uint64, prober Prober) *Gate {
	mode := Specific
	if maxKiB == 0 {
		mode = Generic
	}
	return &Gate{Mode: mode, MaxKiB: maxKiB, FloorKiB: floorKiB, Prober: prober}
}

// Admit returns true if there is enough headroom to start one more task.
// It takes no lock and consults no other worker's state: two workers on
// the same host can both observe sufficient headroom and both admit. The
// design accepts this and mitigates it only by keeping worker count per
// host equal to core count.
func (g *Gate) Admit() (bool, error) {
	free, err := g.Prober.FreeKiB()
	if err != nil {
		return false, err
	}
	switch g.Mode {
	case Specific:
		if g.MaxKiB >= free {
			return false, nil
		}
		return free-g.MaxKiB >= g.FloorKiB, nil
	default:
		return free >= g.FloorKiB, nil
	}
}
