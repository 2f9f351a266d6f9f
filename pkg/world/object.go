package world

import "github.com/remud/remud/pkg/ecs"

// ContainerKind distinguishes the two kinds of thing an Object can sit
// inside.
type ContainerKind int

const (
	ContainerRoom ContainerKind = iota
	ContainerPlayer
)

// Object is the component attached to every object entity. Name,
// Description, Flags, and Keywords are nil when the object inherits that
// field from its prototype; Hooks is discarded in favor of the prototype's
// hook list whenever InheritScripts is true.
type Object struct {
	Id             Id
	Prototype      ecs.Entity
	InheritScripts bool
	ContainerKind  ContainerKind
	Container      ecs.Entity

	Name        *string
	Description *string
	Flags       map[string]struct{} // nil means "inherit"
	Keywords    []string            // nil means "inherit"

	Hooks  HookList
	Data   DataMap
	Timers TimerSet
	FSMs   FSMStack
}

// NewObject creates an object instance from proto, with every inheritable
// field left nil (inheriting) and InheritScripts set as requested.
func NewObject(id Id, proto ecs.Entity, inheritScripts bool) *Object {
	return &Object{
		Id:             id,
		Prototype:      proto,
		InheritScripts: inheritScripts,
		Data:           make(DataMap),
		Timers:         make(TimerSet),
	}
}

// SetName detaches Name from prototype inheritance.
func (o *Object) SetName(name string) {
	o.Name = &name
}

// SetDescription detaches Description from prototype inheritance.
func (o *Object) SetDescription(desc string) {
	o.Description = &desc
}

// SetFlags detaches Flags from prototype inheritance.
func (o *Object) SetFlags(flags map[string]struct{}) {
	o.Flags = flags
}

// SetKeywords detaches Keywords from prototype inheritance.
func (o *Object) SetKeywords(keywords []string) {
	o.Keywords = keywords
}

// ClearName re-attaches Name to prototype inheritance.
func (o *Object) ClearName() { o.Name = nil }

// ClearDescription re-attaches Description to prototype inheritance.
func (o *Object) ClearDescription() { o.Description = nil }

// ClearFlags re-attaches Flags to prototype inheritance.
func (o *Object) ClearFlags() { o.Flags = nil }

// ClearKeywords re-attaches Keywords to prototype inheritance.
func (o *Object) ClearKeywords() { o.Keywords = nil }
