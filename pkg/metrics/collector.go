package metrics

import "time"

// StatsProvider is implemented by the engine to expose gauges the collector
// polls on an interval, rather than having every ECS mutation touch
// Prometheus directly.
type StatsProvider interface {
	EntityCounts() map[string]int
	PlayersOnline() int
	ScriptsBroken() int
	PersistenceQueueDepth() int
	MessageQueueDepth() int
}

// Collector periodically samples gauge-style metrics from the running
// engine. Counters and histograms (ticks, actions, script runs) are
// recorded inline by their owning packages instead.
type Collector struct {
	provider StatsProvider
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector over provider.
func NewCollector(provider StatsProvider) *Collector {
	return &Collector{
		provider: provider,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for kind, count := range c.provider.EntityCounts() {
		EntitiesTotal.WithLabelValues(kind).Set(float64(count))
	}
	PlayersOnline.Set(float64(c.provider.PlayersOnline()))
	ScriptsBroken.Set(float64(c.provider.ScriptsBroken()))
}
