package retention

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

type Scheduler struct {
	scheduler gocron.Scheduler
}

// Start schedules the purger every interval. A purge that is still running
// when the next tick arrives causes that tick to be skipped.
func Start(ctx context.Context, p *Purger, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { p.run(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, err
	}
	s.Start()
	return &Scheduler{scheduler: s}, nil
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}
