/*
Package metrics exposes ReMUD's Prometheus series and a small JSON health
surface.

Counters and histograms (ticks, action outcomes, script runs, persistence
failures) are recorded inline by the packages that own the events. Gauges
that reflect a point-in-time snapshot of the world (entity counts, players
online, broken scripts) are instead sampled on an interval by Collector,
which polls a StatsProvider the engine implements, so that not every ECS
mutation reaches into Prometheus directly. The two queue-depth gauges are
set inline by pkg/messaging.Bus on every Flush and Enqueue.

health.go tracks named component health (storage, engine, scripting) behind
HTTP handlers that pkg/engine.MetricsServer mounts at /healthz, /readyz,
and /livez, the shape an orchestrator's liveness/readiness probes expect.
*/
package metrics
