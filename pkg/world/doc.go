/*
Package world defines ReMUD's durable entity kinds (rooms, prototypes,
objects, players, scripts) as ecs components, plus the prototype/instance
inheritance rules and the durable Update/UpdateGroup wire format that the
persistence writer drains.

Every type here is a plain struct meant to live in an ecs.Table; the
package does not itself own a Store. Field resolution for inheritable
object fields (name, description, flags, keywords, hooks) happens in
inherit.go, which is the single place that knows how to fall back from an
object to its prototype.
*/
package world
