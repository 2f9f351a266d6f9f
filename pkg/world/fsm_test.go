package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSMStepTransitionsWithinMachine(t *testing.T) {
	entered := []StateId{}
	b := NewFSMBuilder("door", "closed")
	b.AddState(&State{
		Id: "closed",
		Decide: func() TransitionResult {
			return TransitionResult{Kind: TransitionTo, To: "open"}
		},
	})
	b.AddState(&State{
		Id:      "open",
		OnEnter: func() { entered = append(entered, "open") },
	})
	fsm := b.Build()

	result := fsm.Step()
	assert.Equal(t, TransitionNone, result.Kind)
	assert.Equal(t, StateId("open"), fsm.Current)
	assert.Equal(t, []StateId{"open"}, entered)
}

func TestFSMStepReturnsPushAndPopToCaller(t *testing.T) {
	b := NewFSMBuilder("outer", "waiting")
	pushed := NewFSMBuilder("inner", "start").Build()
	b.AddState(&State{
		Id: "waiting",
		Decide: func() TransitionResult {
			return TransitionResult{Kind: TransitionPush, Push: pushed}
		},
	})
	fsm := b.Build()

	result := fsm.Step()
	require.Equal(t, TransitionPush, result.Kind)
	assert.Same(t, pushed, result.Push)
	assert.Equal(t, StateId("waiting"), fsm.Current, "a push does not itself change the current state")
}

func TestFSMStackPushPopTop(t *testing.T) {
	var stack FSMStack
	assert.Nil(t, stack.Top())
	assert.Nil(t, stack.Pop())

	first := NewFSMBuilder("a", "s").Build()
	second := NewFSMBuilder("b", "s").Build()
	stack.Push(first)
	stack.Push(second)

	assert.Same(t, second, stack.Top())
	assert.Same(t, second, stack.Pop())
	assert.Same(t, first, stack.Top())
	assert.Same(t, first, stack.Pop())
	assert.Nil(t, stack.Top())
}
