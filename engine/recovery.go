package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vecraft/wal"
)

// RecoveryStats describes the replay performed by Open.
type RecoveryStats struct {
	Entries  int
	LastSeq  uint64
	Duration time.Duration
}

// recover rebuilds the registry from the log. Any invalid entry or failed
// apply aborts; the engine must not serve a registry it cannot trust.
func (c *Coordinator) recover(ctx context.Context) (RecoveryStats, error) {
	start := time.Now()
	var stats RecoveryStats

	for e, err := range c.durability.Replay() {
		if err != nil {
			return stats, fmt.Errorf("engine: replay: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if _, err := apply(c.registry, e.Op, applyReplay); err != nil {
			return stats, fmt.Errorf("engine: replay: %w: seq %d %s %q: %w",
				wal.ErrCorruptEntry, e.Seq, e.Op.Kind(), e.Op.Collection(), err)
		}
		stats.Entries++
		stats.LastSeq = e.Seq
	}

	if last := c.durability.LastSeq(); c.durability.Enabled() && last != stats.LastSeq {
		return stats, fmt.Errorf("engine: replay ended at seq %d, log ends at seq %d", stats.LastSeq, last)
	}

	c.mu.Lock()
	c.seq = stats.LastSeq
	c.mu.Unlock()

	stats.Duration = time.Since(start)
	return stats, nil
}
