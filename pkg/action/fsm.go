package action

import (
	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
)

// stepFSMs advances the active (top) FSM of every object and player that
// carries a non-empty FSM stack: Act then Decide on the current state,
// once per tick. A TransitionTo result is resolved inside FSM.Step itself;
// Push/Pop results affect which FSM is active, so they are applied to the
// owning stack here. Runs on the tick goroutine, after timer hooks and
// before the action batch, so a state's decide sees the world exactly as
// the timers left it.
func (p *Pipeline) stepFSMs() {
	p.Objects.Each(func(_ ecs.Entity, obj *world.Object) bool {
		stepStack(&obj.FSMs)
		return true
	})
	p.Players.Each(func(_ ecs.Entity, pl *world.Player) bool {
		stepStack(&pl.FSMs)
		return true
	})
}

func stepStack(stack *world.FSMStack) {
	top := stack.Top()
	if top == nil {
		return
	}
	switch result := top.Step(); result.Kind {
	case world.TransitionPush:
		stack.Push(result.Push)
	case world.TransitionPop:
		stack.Pop()
	}
}
