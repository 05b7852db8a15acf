package coupon

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher keeps the cached catalog warm so Best/Eligible work off
// recent data instead of paying a fetch on first use.
type Refresher struct {
	engine  *Engine
	tick    time.Duration
	timeout time.Duration
	log     *zap.Logger
}

func NewRefresher(engine *Engine, tick time.Duration, log *zap.Logger) *Refresher {
	return &Refresher{
		engine:  engine,
		tick:    tick,
		timeout: 10 * time.Second,
		log:     log,
	}
}

func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.engine.RefreshCatalog(ctx); err != nil {
		r.log.Warn("coupon catalog refresh failed", zap.Error(err))
	}
}
