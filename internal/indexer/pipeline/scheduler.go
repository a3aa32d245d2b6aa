package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Schedule runs a pass right away when onStart is set and then every
// interval until Close. A zero interval disables periodic passes.
func (i *Indexer) Schedule(interval time.Duration, onStart bool) {
	if onStart {
		i.Trigger()
	}
	if interval <= 0 {
		return
	}
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-i.ctx.Done():
				return
			case <-t.C:
				if _, err := i.Run(i.ctx); err != nil && !errors.Is(err, context.Canceled) {
					i.log.Error("scheduled pass failed", zap.Error(err))
				}
			}
		}
	}()
}
