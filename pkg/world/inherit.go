package world

// inherit.go resolves an Object's inheritable fields against its
// Prototype. Every Effective* function follows the same COALESCE-style
// rule: a non-nil instance field wins outright; a nil one falls back to
// the prototype's value untouched.

// EffectiveName returns o's display name, falling back to proto's when o
// has not overridden it.
func EffectiveName(o *Object, proto *Prototype) string {
	if o.Name != nil {
		return *o.Name
	}
	return proto.Name
}

// EffectiveDescription returns o's description, falling back to proto's.
func EffectiveDescription(o *Object, proto *Prototype) string {
	if o.Description != nil {
		return *o.Description
	}
	return proto.Description
}

// EffectiveKeywords returns o's keyword list, falling back to proto's.
func EffectiveKeywords(o *Object, proto *Prototype) []string {
	if o.Keywords != nil {
		return o.Keywords
	}
	return proto.Keywords
}

// EffectiveFlags returns o's flag set, falling back to proto's. The two
// sets are never merged: an instance that overrides Flags at all replaces
// the prototype's set wholesale, matching the same nil-means-inherit rule
// as every other field.
func EffectiveFlags(o *Object, proto *Prototype) map[string]struct{} {
	if o.Flags != nil {
		return o.Flags
	}
	return proto.Flags
}

// EffectiveHooks returns the hook list that governs o: the prototype's
// list when InheritScripts is set, otherwise o's own list exclusively.
// Unlike the other fields, hook inheritance is not per-field nil-COALESCE
// but an all-or-nothing switch, since a script author reasons about "does
// this object run its prototype's behavior" as a single decision.
func EffectiveHooks(o *Object, proto *Prototype) HookList {
	if o.InheritScripts {
		return proto.Hooks
	}
	return o.Hooks
}
