package storage

import "fmt"

// DeserializeError reports a row that could not be turned into a live
// entity; during boot this is always fatal, per the loader's ordered,
// abort-on-first-failure contract.
type DeserializeError struct {
	Row string
	Err error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("storage: deserialize %s: %v", e.Row, e.Err)
}

func (e *DeserializeError) Unwrap() error { return e.Err }

// MissingReferenceError reports an id referenced by one row that no row
// of the target kind satisfies, e.g. an exit pointing at a room id that
// was never loaded.
type MissingReferenceError struct {
	Kind string
	Id   any
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("storage: missing reference: %s %v not found", e.Kind, e.Id)
}
