package world

import "github.com/remud/remud/pkg/ecs"

// PrototypeEdit is a staged change to a Prototype's inheritable fields.
// Edits are applied once per tick rather than immediately,
// so an object queried mid-tick never observes a partially-updated
// prototype; only a reload pass flips every inheriting object's effective
// view over in one step. A nil/false field means "leave this field
// untouched"; FlagsSet/KeywordsSet distinguish "replace with empty" from
// "not edited" the same way Object's own nil-means-inherit fields do.
type PrototypeEdit struct {
	Name        *string
	Description *string
	Flags       map[string]struct{}
	FlagsSet    bool
	Keywords    []string
	KeywordsSet bool
	Hooks       *HookList // non-nil replaces the prototype's hook list wholesale
}

// ApplyPrototypeEdit writes edit's staged fields into proto in place.
func ApplyPrototypeEdit(proto *Prototype, edit PrototypeEdit) {
	if edit.Name != nil {
		proto.Name = *edit.Name
	}
	if edit.Description != nil {
		proto.Description = *edit.Description
	}
	if edit.FlagsSet {
		proto.Flags = edit.Flags
	}
	if edit.KeywordsSet {
		proto.Keywords = edit.Keywords
	}
	if edit.Hooks != nil {
		proto.Hooks = *edit.Hooks
	}
}

// ReloadInheritingObjects is called once the edited Prototype's fields
// have been written, for every object that still inherits from it
// (InheritScripts only changes hook visibility; non-hook fields are
// already resolved dynamically by Effective*, so this pass exists
// principally to give the hook-inheriting objects' HookList a chance to
// observe the new set (EffectiveHooks already reads proto.Hooks live, so
// no per-object mutation is actually required here). It returns the
// entities that inherit scripts from proto, for callers that also need to
// requeue their Init hooks or durable rows.
func ReloadInheritingObjects(objects *ecs.Table[*Object], protoEntity ecs.Entity) []ecs.Entity {
	var out []ecs.Entity
	objects.Each(func(e ecs.Entity, obj *Object) bool {
		if obj.Prototype == protoEntity && obj.InheritScripts {
			out = append(out, e)
		}
		return true
	})
	return out
}
