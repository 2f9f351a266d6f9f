/*
Package ecs implements the entity/component store described by the engine's
data model: entities are bare handles, components are typed sparse tables
keyed by entity, globals live as single-writer resources, and cross-system
communication happens over double-buffered event buses.

This is not a general-purpose ECS: there is no archetype storage or
query-plan compiler, just typed maps behind a mutex per table, which is all
the engine's access patterns need. Spawn and despawn are exclusive (they
take the store-wide lock); component reads/writes take only the lock of the
table involved.

	Store
	 ├─ entities: alive set, Spawn/Despawn
	 ├─ Components[T]: one table per component type, created lazily
	 ├─ Resources[T]: one cell per resource type, single-writer
	 └─ Events[T]: one double-buffered bus per event type
*/
package ecs
