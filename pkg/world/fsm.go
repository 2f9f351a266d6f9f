package world

import "github.com/remud/remud/pkg/log"

// StateId identifies one state within an FSM.
type StateId string

// TransitionResult is returned by a state's Decide step. Exactly one of its
// fields is meaningful, selected by Kind: a plain transition to another
// state in the same FSM, pushing a new FSM on top of the stack, or popping
// the current FSM off the stack.
type TransitionResult struct {
	Kind TransitionKind
	To   StateId // for TransitionTo
	Push *FSM    // for TransitionPush
}

// TransitionKind distinguishes the shapes a state's decision can take:
// no transition (TransitionNone) or one of the three above.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionTo
	TransitionPush
	TransitionPop
)

// State is one node of a pushdown FSM. OnEnter/OnExit bracket a
// transition into or out of the state; Decide inspects world/event state
// and chooses the next step; Act performs the state's per-tick side
// effects. All three are optional script-run hooks from the caller's point
// of view; pkg/scripting and pkg/session supply concrete implementations.
type State struct {
	Id      StateId
	OnEnter func()
	OnExit  func()
	Decide  func() TransitionResult
	Act     func()
}

// FSM is one pushdown state machine: a named map of states plus the id of
// the currently active one. Builders assemble an FSM before it is realized
// (pushed) onto an entity's or connection's FSM stack; see FSMBuilder.
type FSM struct {
	Name    string
	States  map[StateId]*State
	Current StateId
}

// Step advances the FSM one tick: Act runs on the current state, then
// Decide is consulted. A TransitionTo result runs OnExit/OnEnter around the
// swap within this FSM; TransitionPush/TransitionPop are returned to the
// caller (an entity's FSM stack, or the session layer) to act on, since
// they affect which FSM is active, not just which state within one FSM is
// active.
func (f *FSM) Step() TransitionResult {
	state, ok := f.States[f.Current]
	if !ok {
		return TransitionResult{Kind: TransitionNone}
	}
	if state.Act != nil {
		state.Act()
	}
	if state.Decide == nil {
		return TransitionResult{Kind: TransitionNone}
	}
	result := state.Decide()
	if result.Kind == TransitionTo {
		log.Logger.Debug().
			Str("fsm", f.Name).
			Str("from", string(f.Current)).
			Str("to", string(result.To)).
			Msg("fsm: state transition")
		if state.OnExit != nil {
			state.OnExit()
		}
		f.Current = result.To
		if next, ok := f.States[f.Current]; ok && next.OnEnter != nil {
			next.OnEnter()
		}
		return TransitionResult{Kind: TransitionNone}
	}
	return result
}

// FSMBuilder assembles an FSM's state set before it is realized. It mirrors
// the two-phase fsm_builder()/add_state(...)/push_fsm(...) flow scripts use:
// a builder accumulates states, then push_fsm(builder) freezes it into an
// FSM and pushes it onto the target's stack.
type FSMBuilder struct {
	name   string
	states map[StateId]*State
	start  StateId
}

// NewFSMBuilder creates a builder for an FSM named name, whose initial
// state is start.
func NewFSMBuilder(name string, start StateId) *FSMBuilder {
	return &FSMBuilder{name: name, states: make(map[StateId]*State), start: start}
}

// AddState registers s under its own Id.
func (b *FSMBuilder) AddState(s *State) *FSMBuilder {
	b.states[s.Id] = s
	return b
}

// Build realizes the accumulated states into an FSM positioned at the
// builder's start state.
func (b *FSMBuilder) Build() *FSM {
	return &FSM{Name: b.name, States: b.states, Current: b.start}
}

// FSMStack is the per-entity pushdown stack of active FSMs; only the top
// one is stepped each tick.
type FSMStack []*FSM

// Push adds f to the top of the stack.
func (s *FSMStack) Push(f *FSM) {
	*s = append(*s, f)
}

// Pop removes and returns the top FSM, or nil if the stack is empty.
func (s *FSMStack) Pop() *FSM {
	if len(*s) == 0 {
		return nil
	}
	top := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return top
}

// Top returns the active FSM without removing it, or nil if the stack is
// empty.
func (s FSMStack) Top() *FSM {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}
