package world

import "time"

// TimerKind distinguishes a timer that fires once from one that re-arms
// itself after firing.
type TimerKind int

const (
	OneShot TimerKind = iota
	Repeating
)

// Timer is a single named countdown attached to an entity.
type Timer struct {
	Name      string
	Kind      TimerKind
	Duration  time.Duration
	Remaining time.Duration
	Finished  bool
}

// TimerSet is the per-entity collection of active timers, keyed by name so
// re-arming self.timer(name, ...) replaces rather than duplicates.
type TimerSet map[string]*Timer

// Set installs or replaces a timer by name.
func (t TimerSet) Set(name string, kind TimerKind, duration time.Duration) {
	t[name] = &Timer{Name: name, Kind: kind, Duration: duration, Remaining: duration}
}

// Tick advances every timer in the set by dt and returns the names of
// timers that finished on this call. Repeating timers are re-armed
// immediately so they are never observed as Finished by a caller that
// iterates after Tick; one-shots are left in place, marked Finished, for
// the cleanup pass to reap at the start of the next tick.
func (t TimerSet) Tick(dt time.Duration) []string {
	var fired []string
	for name, timer := range t {
		if timer.Finished {
			continue
		}
		timer.Remaining -= dt
		if timer.Remaining > 0 {
			continue
		}
		fired = append(fired, name)
		if timer.Kind == Repeating {
			timer.Remaining += timer.Duration
			if timer.Remaining <= 0 {
				timer.Remaining = timer.Duration
			}
		} else {
			timer.Finished = true
		}
	}
	return fired
}

// ReapFinished removes every one-shot timer already marked Finished. The
// engine calls this at the very start of each tick, before advancing
// clocks, so a timer that fired on tick T is still inspectable (e.g. by an
// immortal's info command) until T+1's cleanup pass.
func (t TimerSet) ReapFinished() {
	for name, timer := range t {
		if timer.Finished {
			delete(t, name)
		}
	}
}
