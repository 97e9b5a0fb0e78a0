package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Retention prunes published outbox rows on a cron schedule so the table
// stays bounded without a separate janitor service.
type Retention struct {
	repo    *Repository
	logger  *slog.Logger
	spec    string
	horizon time.Duration
}

func NewRetention(repo *Repository, logger *slog.Logger, spec string, horizon time.Duration) *Retention {
	if spec == "" {
		spec = "17 3 * * *" // daily, off the hour to avoid thundering with other jobs
	}
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	return &Retention{repo: repo, logger: logger, spec: spec, horizon: horizon}
}

// Run blocks until ctx is done.
func (r *Retention) Run(ctx context.Context) {
	c := cron.New()
	_, err := c.AddFunc(r.spec, func() {
		pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		n, err := r.repo.PrunePublished(pruneCtx, time.Now().Add(-r.horizon))
		if err != nil {
			r.logger.Error("outbox retention prune failed", "err", err)
			return
		}
		if n > 0 {
			r.logger.Info("outbox retention pruned", "rows", n)
		}
	})
	if err != nil {
		r.logger.Error("outbox retention schedule invalid", "spec", r.spec, "err", err)
		return
	}
	c.Start()
	<-ctx.Done()
	c.Stop()
}
