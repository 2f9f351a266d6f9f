/*
Package storage provides Postgres-backed persistence for the simulation's
durable world state.

The storage package implements the Store interface on top of pgx,
providing transactional reads and writes for rooms, exits, prototypes,
objects, scripts, hooks, and players. Loader and writer both speak the
fixed relational shape named by the system. Inheritance between a
prototype and its object instances is not resolved in SQL (no COALESCE on
read): a NULL object column loads as a nil field, which always and only
means "use the prototype's value", and pkg/world's Effective* functions
resolve it in application code.

# Architecture

	┌──────────────────── POSTGRES STORAGE ────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              PostgresStore                   │          │
	│  │  - Pool: pgxpool.Pool                        │          │
	│  │  - Transactions: per-UpdateGroup             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Table Structure                 │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ config           (key)      │             │          │
	│  │  │ rooms            (id)       │             │          │
	│  │  │ regions          (id)       │             │          │
	│  │  │ room_regions     (room,reg) │             │          │
	│  │  │ exits            (from,dir) │             │          │
	│  │  │ prototypes       (id)       │             │          │
	│  │  │ objects          (id)       │             │          │
	│  │  │ room_objects     (room,obj) │             │          │
	│  │  │ scripts          (name)     │             │          │
	│  │  │ room_scripts     (owner,..) │             │          │
	│  │  │ prototype_scripts(owner,..) │             │          │
	│  │  │ object_scripts   (owner,..) │             │          │
	│  │  │ players          (id)       │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Boot Loader                         │          │
	│  │  config → rooms → regions → exits →         │          │
	│  │  prototypes → objects → scripts → hooks,    │          │
	│  │  aborting world.Store construction on the   │          │
	│  │  first step that errors; players load one   │          │
	│  │  at a time at login (LoadPlayer)            │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Durable Writer                      │          │
	│  │  Drains world.Update/UpdateGroup from a      │          │
	│  │  channel; each UpdateGroup runs in one pgx   │          │
	│  │  transaction, but a single member's failure  │          │
	│  │  is logged and skipped rather than rolling   │          │
	│  │  back its siblings                           │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Migrations

SQL migration files live under migrations/ as numbered .sql files, embedded
into the binary with embed.FS and applied in order by both the server at
boot and the standalone migrate command, tracked in a schema_migrations
table keyed by filename.
*/
package storage
