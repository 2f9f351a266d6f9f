package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerSetOneShotFiresOnceThenReaps(t *testing.T) {
	ts := make(TimerSet)
	ts.Set("fuse", OneShot, 10*time.Second)

	fired := ts.Tick(6 * time.Second)
	assert.Empty(t, fired)

	fired = ts.Tick(5 * time.Second)
	assert.Equal(t, []string{"fuse"}, fired)
	assert.True(t, ts["fuse"].Finished)

	ts.ReapFinished()
	_, ok := ts["fuse"]
	assert.False(t, ok)
}

func TestTimerSetRepeatingReArms(t *testing.T) {
	ts := make(TimerSet)
	ts.Set("heartbeat", Repeating, 5*time.Second)

	fired := ts.Tick(5 * time.Second)
	assert.Equal(t, []string{"heartbeat"}, fired)
	assert.False(t, ts["heartbeat"].Finished)
	assert.Equal(t, 5*time.Second, ts["heartbeat"].Remaining)

	fired = ts.Tick(3 * time.Second)
	assert.Empty(t, fired)
}

func TestDataMapRemoveReturnsPriorValue(t *testing.T) {
	d := make(DataMap)
	d.Set("k", 42)

	removed := d.Remove("k")
	assert.Equal(t, 42, removed)

	removed = d.Remove("k")
	assert.Nil(t, removed)
}
