package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/0xb0rn3/fastdl/internal/fetch"
	"github.com/0xb0rn3/fastdl/internal/utils"
)

// Monitor observes transfers as the scheduler runs them. Attach hands over
// a read-only progress handle before the transfer starts; Done delivers
// the terminal outcome. Implementations must not block.
type Monitor interface {
	Attach(id string, label string, tracker *fetch.Tracker)
	Done(id string, outcome fetch.TransferOutcome)
}

// Run downloads every request, never more than cfg.MaxConcurrent at a
// time. All requests are attempted regardless of earlier failures; a
// panicking request is converted to a failed outcome so one bad locator
// cannot abort the batch. Outcomes come back in input order along with the
// success count. Once ctx is cancelled no new transfer starts.
func Run(ctx context.Context, cfg utils.Config, requests []fetch.TransferRequest, monitor Monitor) ([]fetch.TransferOutcome, int) {
	log := utils.GetLogger("scheduler")
	log.Info().Int("totalFiles", len(requests)).Int("maxConcurrent", cfg.MaxConcurrent).Int("connections", cfg.Connections).Msg("Initiating batch transfer")

	orchestrator := fetch.NewOrchestrator(cfg)
	outcomes := make([]fetch.TransferOutcome, len(requests))
	var eg errgroup.Group
	eg.SetLimit(cfg.MaxConcurrent)
	for i, req := range requests {
		i, req := i, req
		eg.Go(func() error {
			outcomes[i] = runOne(ctx, orchestrator, req, monitor)
			return nil
		})
	}
	eg.Wait()

	succeeded := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			succeeded++
		}
	}
	log.Info().Int("succeeded", succeeded).Int("total", len(requests)).Msg("Batch transfer complete")
	return outcomes, succeeded
}

func runOne(ctx context.Context, orchestrator *fetch.Orchestrator, req fetch.TransferRequest, monitor Monitor) (outcome fetch.TransferOutcome) {
	log := utils.GetLogger("scheduler")
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("url", req.URL).Any("panic", r).Msg("Transfer panicked")
			outcome = fetch.TransferOutcome{URL: req.URL, Err: fmt.Errorf("transfer panicked: %v", r)}
		}
		if monitor != nil {
			monitor.Done(req.ID, outcome)
		}
	}()

	if ctx.Err() != nil {
		return fetch.TransferOutcome{URL: req.URL, Interrupted: true, Err: ctx.Err()}
	}
	tracker := fetch.NewTracker()
	if monitor != nil {
		monitor.Attach(req.ID, req.URL, tracker)
	}
	return orchestrator.Transfer(ctx, req, tracker)
}
