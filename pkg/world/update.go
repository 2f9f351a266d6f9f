package world

import "encoding/json"

// UpdateOp names one durable mutation kind. The persistence writer
// switches on Op to pick the row shape to decode and the statement to
// run.
type UpdateOp string

const (
	OpUpsertRoom       UpdateOp = "upsert_room"
	OpDeleteRoom       UpdateOp = "delete_room"
	OpUpsertExit       UpdateOp = "upsert_exit"
	OpDeleteExit       UpdateOp = "delete_exit"
	OpUpsertRoomRegion UpdateOp = "upsert_room_region"
	OpDeleteRoomRegion UpdateOp = "delete_room_region"
	OpUpsertPrototype  UpdateOp = "upsert_prototype"
	OpDeletePrototype  UpdateOp = "delete_prototype"
	OpUpsertObject     UpdateOp = "upsert_object"
	OpDeleteObject     UpdateOp = "delete_object"
	OpUpsertPlayer     UpdateOp = "upsert_player"
	OpUpsertScript     UpdateOp = "upsert_script"
	OpDeleteScript     UpdateOp = "delete_script"
	OpUpsertHook       UpdateOp = "upsert_hook"
	OpDeleteHook       UpdateOp = "delete_hook"
)

// Update is a single durable mutation, queued by the simulation and
// applied by the persistence writer. Data carries the op-specific payload
// as already-serialized JSON, so the queue itself stays op-agnostic; the
// writer unmarshals Data into the concrete row type matching Op.
type Update struct {
	Op   UpdateOp
	Data json.RawMessage
}

// NewUpdate marshals payload into an Update of the given op, panicking
// only on programmer error (a payload type that cannot marshal), never on
// data the simulation itself produced.
func NewUpdate(op UpdateOp, payload any) Update {
	data, err := json.Marshal(payload)
	if err != nil {
		panic("world: update payload does not marshal: " + err.Error())
	}
	return Update{Op: op, Data: data}
}

// UpdateGroup is a batch of Updates that become visible to readers of the
// durable store atomically, but whose individual members may each
// independently fail to apply without rolling back the rest of the group:
// a room and the three exits pointing at it can be written together
// without one bad exit blocking the room row itself.
type UpdateGroup struct {
	Updates []Update
}

// Add appends an Update built from op and payload to the group.
func (g *UpdateGroup) Add(op UpdateOp, payload any) {
	g.Updates = append(g.Updates, NewUpdate(op, payload))
}

// RoomRow is the OpUpsertRoom/OpDeleteRoom payload shape. Region
// membership travels separately via OpUpsertRoomRegion since it is a
// many-to-many relation, not a room-owned column.
type RoomRow struct {
	Id          Id     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RoomRegionRow is the OpUpsertRoomRegion/OpDeleteRoomRegion payload
// shape, naming the region by its row name rather than a separate
// allocated Id since regions are author-defined labels, not entities.
type RoomRegionRow struct {
	RoomId Id     `json:"room_id"`
	Region string `json:"region"`
}

// ExitRow is the OpUpsertExit/OpDeleteExit payload shape.
type ExitRow struct {
	RoomId Id        `json:"room_id"`
	Dir    Direction `json:"dir"`
	ToId   Id        `json:"to_id"`
}

// PrototypeRow is the OpUpsertPrototype/OpDeletePrototype payload shape.
type PrototypeRow struct {
	Id          Id       `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Flags       []string `json:"flags"`
	Keywords    []string `json:"keywords"`
}

// ObjectRow is the OpUpsertObject/OpDeleteObject payload shape. Nil
// pointer fields persist as SQL NULL and load back as nil, which the
// Effective* functions in inherit.go resolve against the prototype.
type ObjectRow struct {
	Id             Id       `json:"id"`
	PrototypeId    Id       `json:"prototype_id"`
	InheritScripts bool     `json:"inherit_scripts"`
	ContainerKind  string   `json:"container_kind"`
	ContainerId    Id       `json:"container_id"`
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	Flags          []string `json:"flags"`
	Keywords       []string `json:"keywords"`
}

// PlayerRow is the OpUpsertPlayer payload shape. Players are never
// deleted, only ever upserted, since a character's existence persists
// across every session regardless of flag/inventory changes.
type PlayerRow struct {
	Id           Id       `json:"id"`
	Name         string   `json:"name"`
	PasswordHash string   `json:"password_hash"`
	RoomId       Id       `json:"room_id"`
	Description  string   `json:"description"`
	Flags        []string `json:"flags"`
}

// ScriptRow is the OpUpsertScript/OpDeleteScript payload shape, matching
// the scripts(name,trigger,code) table directly; scripts are keyed by
// Name, not by a monotone integer id.
type ScriptRow struct {
	Name    string  `json:"name"`
	Trigger Trigger `json:"trigger"`
	Code    string  `json:"code"`
}

// HookRow is the OpUpsertHook/OpDeleteHook payload shape. EntityId and
// EntityKind together identify the owning room/object/prototype row.
type HookRow struct {
	EntityId   Id      `json:"entity_id"`
	EntityKind Kind    `json:"entity_kind"`
	Script     string  `json:"script"`
	Trigger    Trigger `json:"trigger"`
}
