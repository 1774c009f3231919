package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/eisen-inventory/internal/alert"
	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Runner is the part of the inventory service the jobs drive.
type Runner interface {
	RecordSnapshots(ctx context.Context, date time.Time) (*domain.SnapshotRun, error)
	EvaluateAllAlerts(ctx context.Context) ([]domain.AlertEvaluation, error)
}

// InventoryJobs handles the snapshot and alert sweep tasks.
type InventoryJobs struct {
	runner Runner
	logger zerolog.Logger
}

func NewInventoryJobs(runner Runner, logger zerolog.Logger) *InventoryJobs {
	return &InventoryJobs{runner: runner, logger: logger}
}

// HandleSnapshot processes TaskSnapshot. A malformed payload is not retried.
func (j *InventoryJobs) HandleSnapshot(ctx context.Context, t *asynq.Task) error {
	var payload SnapshotPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode snapshot payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	var date time.Time
	if payload.Date != "" {
		parsed, err := time.Parse(dateLayout, payload.Date)
		if err != nil {
			return fmt.Errorf("snapshot date %q: %v: %w", payload.Date, err, asynq.SkipRetry)
		}
		date = parsed
	}

	run, err := j.runner.RecordSnapshots(ctx, date)
	if err != nil {
		return err
	}
	j.logger.Info().
		Str("date", run.Date.Format(dateLayout)).
		Int("created", run.Created).
		Msg("snapshot task complete")
	return nil
}

// HandleEvaluateAlerts processes TaskEvaluateAlerts.
func (j *InventoryJobs) HandleEvaluateAlerts(ctx context.Context, _ *asynq.Task) error {
	results, err := j.runner.EvaluateAllAlerts(ctx)
	if err != nil {
		return err
	}
	counts := alert.Summarize(results)
	j.logger.Info().
		Int("products", len(results)).
		Int("low", counts[domain.StatusLow]).
		Int("approaching", counts[domain.StatusApproaching]).
		Int("ok", counts[domain.StatusOK]).
		Msg("alert sweep complete")
	return nil
}

// Handlers lists the task handlers for NewWorker.
func (j *InventoryJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskSnapshot, Handler: j.HandleSnapshot},
		{Type: TaskEvaluateAlerts, Handler: j.HandleEvaluateAlerts},
	}
}

// Schedule builds the cron registrations. An empty cron expression leaves that task unscheduled.
func Schedule(snapshotCron, alertsCron string) ([]CronRegistration, error) {
	var out []CronRegistration
	if snapshotCron != "" {
		task, err := NewSnapshotTask(time.Time{})
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: snapshotCron, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	if alertsCron != "" {
		out = append(out, CronRegistration{Spec: alertsCron, Task: NewEvaluateAlertsTask(), Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	return out, nil
}
