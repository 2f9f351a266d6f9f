package world

// Prototype is a template. It never appears in a room; its fields are
// inherited by object instances whose corresponding field is nil.
type Prototype struct {
	Id          Id
	Name        string
	Description string
	Flags       map[string]struct{}
	Keywords    []string
	Hooks       HookList
}

// NewPrototype creates an empty prototype ready for insertion.
func NewPrototype(id Id, name, description string) *Prototype {
	return &Prototype{
		Id:          id,
		Name:        name,
		Description: description,
		Flags:       make(map[string]struct{}),
	}
}

// HasFlag reports whether name is set on the prototype.
func (p *Prototype) HasFlag(name string) bool {
	_, ok := p.Flags[name]
	return ok
}

// SetFlag sets name, idempotently.
func (p *Prototype) SetFlag(name string) {
	p.Flags[name] = struct{}{}
}

// UnsetFlag clears name, idempotently; set then unset is a no-op on the
// flag set as a whole.
func (p *Prototype) UnsetFlag(name string) {
	delete(p.Flags, name)
}
