package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveFieldsFallBackToPrototype(t *testing.T) {
	proto := NewPrototype(1, "a rusty sword", "It has seen better days.")
	proto.SetFlag("weapon")
	proto.Keywords = []string{"sword", "rusty"}

	obj := NewObject(2, 0, false)

	assert.Equal(t, "a rusty sword", EffectiveName(obj, proto))
	assert.Equal(t, "It has seen better days.", EffectiveDescription(obj, proto))
	assert.Equal(t, []string{"sword", "rusty"}, EffectiveKeywords(obj, proto))
	assert.Equal(t, proto.Flags, EffectiveFlags(obj, proto))
}

func TestEffectiveFieldsPreferOverride(t *testing.T) {
	proto := NewPrototype(1, "a rusty sword", "It has seen better days.")
	obj := NewObject(2, 0, false)
	obj.SetName("Excalibur")
	obj.SetDescription("It gleams.")
	obj.SetKeywords([]string{"excalibur"})
	obj.SetFlags(map[string]struct{}{"legendary": {}})

	assert.Equal(t, "Excalibur", EffectiveName(obj, proto))
	assert.Equal(t, "It gleams.", EffectiveDescription(obj, proto))
	assert.Equal(t, []string{"excalibur"}, EffectiveKeywords(obj, proto))
	assert.Equal(t, map[string]struct{}{"legendary": {}}, EffectiveFlags(obj, proto))
}

func TestEffectiveFieldsClearRestoresInheritance(t *testing.T) {
	proto := NewPrototype(1, "a rusty sword", "It has seen better days.")
	obj := NewObject(2, 0, false)
	obj.SetName("Excalibur")
	obj.ClearName()

	assert.Equal(t, "a rusty sword", EffectiveName(obj, proto))
}

func TestEffectiveHooksFollowsInheritScriptsSwitch(t *testing.T) {
	proto := NewPrototype(1, "a lamp", "A brass lamp.")
	proto.Hooks.Add(Hook{Script: "lamp_on_get", Trigger: Trigger{Class: TriggerPost, Event: EventGet}})

	inheriting := NewObject(2, 0, true)
	inheriting.Hooks.Add(Hook{Script: "instance_only", Trigger: Trigger{Class: TriggerInit}})
	assert.Equal(t, proto.Hooks, EffectiveHooks(inheriting, proto))

	standalone := NewObject(3, 0, false)
	standalone.Hooks.Add(Hook{Script: "instance_only", Trigger: Trigger{Class: TriggerInit}})
	assert.Equal(t, standalone.Hooks, EffectiveHooks(standalone, proto))
}
