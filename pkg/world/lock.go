package world

import "sync"

// Lock is the single readers-writer lock guarding every mutation to the
// simulation World. Script runs share the shared (read) mode for queries
// and take the exclusive (write) mode for exactly the duration of one
// mutating API call: never held across a call back
// into script execution, never held longer than a single API call.
type Lock struct {
	mu sync.RWMutex
}

// RLock/RUnlock/Lock/Unlock satisfy sync.Locker-shaped call sites in
// pkg/scripting and pkg/action without either package depending on
// sync.RWMutex's zero-value semantics directly.
func (l *Lock) RLock()   { l.mu.RLock() }
func (l *Lock) RUnlock() { l.mu.RUnlock() }
func (l *Lock) Lock()    { l.mu.Lock() }
func (l *Lock) Unlock()  { l.mu.Unlock() }
