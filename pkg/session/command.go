package session

import (
	"errors"
	"strings"

	"github.com/remud/remud/pkg/action"
	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
)

// ErrCommandParse reports a line the in-game command surface could not
// turn into a dispatchable Action. The full tokenizer/help-text surface is
// an external collaborator; parseCommand below is the
// minimal closed-verb bridge this module needs to drive the action
// pipeline end to end.
var ErrCommandParse = errors.New("session: unrecognized command")

var directions = map[string]world.Direction{
	"north": world.North, "n": world.North,
	"south": world.South, "s": world.South,
	"east": world.East, "e": world.East,
	"west": world.West, "w": world.West,
	"up": world.Up, "u": world.Up,
	"down": world.Down, "d": world.Down,
}

// parseCommand maps one trimmed input line to an action.Action for actor.
// "quit" and "password" are deliberately absent: the FSM intercepts those
// directly rather than routing them through the tick pipeline.
func parseCommand(actor ecs.Entity, line string) (action.Action, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return action.Action{}, ErrCommandParse
	}
	verb, rest := splitVerb(line)
	verbLower := strings.ToLower(verb)

	if dir, ok := directions[verbLower]; ok {
		return action.Action{Actor: actor, Kind: world.EventMove, Direction: dir}, nil
	}

	switch verbLower {
	case "look", "l":
		return action.Action{Actor: actor, Kind: world.EventLook}, nil
	case "say", "'":
		return action.Action{Actor: actor, Kind: world.EventSay, Message: rest}, nil
	case "emote", ":":
		return action.Action{Actor: actor, Kind: world.EventEmote, Message: rest}, nil
	case "get", "take":
		return action.Action{Actor: actor, Kind: world.EventGet, TargetName: rest}, nil
	case "drop":
		return action.Action{Actor: actor, Kind: world.EventDrop, TargetName: rest}, nil
	case "use":
		return action.Action{Actor: actor, Kind: world.EventUse, TargetName: rest}, nil
	case "whisper", "tell":
		target, msg := splitVerb(rest)
		return action.Action{Actor: actor, Kind: world.EventWhisper, TargetName: target, Message: msg}, nil
	case "inventory", "i", "inv":
		return action.Action{Actor: actor, Kind: world.EventInventory}, nil
	case "who":
		return action.Action{Actor: actor, Kind: world.EventWho}, nil
	case "stats", "score":
		return action.Action{Actor: actor, Kind: world.EventStats}, nil
	case "shutdown":
		return action.Action{Actor: actor, Kind: world.EventShutdown}, nil
	case "restart":
		return action.Action{Actor: actor, Kind: world.EventRestart}, nil
	case "@roomremove":
		return action.Action{Actor: actor, Kind: world.EventImmortal, Args: map[string]any{"op": "room_remove"}}, nil
	}
	return action.Action{}, ErrCommandParse
}

func splitVerb(line string) (verb, rest string) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}
