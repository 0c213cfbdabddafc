package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/metrics"
	"github.com/wellhost/wellhost-server-go/internal/model"
)

type AccountCounter interface {
	CountByState(ctx context.Context) ([]model.AccountStateCount, error)
}

// AccountStatsJob periodically publishes the number of connected channel
// accounts per platform, split by whether the stored token has expired.
// It never refreshes anything: refresh stays on the read path.
type AccountStatsJob struct {
	accounts AccountCounter
	interval time.Duration
	done     chan struct{}
}

func NewAccountStatsJob(accounts AccountCounter, interval time.Duration) *AccountStatsJob {
	return &AccountStatsJob{
		accounts: accounts,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *AccountStatsJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("account stats job started")
}

func (j *AccountStatsJob) Stop() {
	close(j.done)
	log.Info().Msg("account stats job stopped")
}

func (j *AccountStatsJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.collect()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.collect()
		}
	}
}

func (j *AccountStatsJob) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	counts, err := j.accounts.CountByState(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to count external accounts")
		return
	}

	// Platforms with no rows left would otherwise keep their last value.
	metrics.ExternalAccounts.Reset()
	for _, c := range counts {
		metrics.ExternalAccounts.WithLabelValues(string(c.Platform), "active").Set(float64(c.Active))
		metrics.ExternalAccounts.WithLabelValues(string(c.Platform), "expired").Set(float64(c.Expired))
	}
	log.Debug().Int("platforms", len(counts)).Msg("external account gauges updated")
}
