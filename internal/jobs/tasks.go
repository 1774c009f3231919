package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshot records one stock snapshot per product.
	TaskSnapshot = "inventory:snapshot"
	// TaskEvaluateAlerts re-classifies every product.
	TaskEvaluateAlerts = "inventory:evaluate_alerts"

	dateLayout = "2006-01-02"
)

// SnapshotPayload names the day to record. Empty means today.
type SnapshotPayload struct {
	Date string `json:"date,omitempty"`
}

// NewSnapshotTask constructs a snapshot task. A zero date records the day the task runs.
func NewSnapshotTask(date time.Time) (*asynq.Task, error) {
	payload := SnapshotPayload{}
	if !date.IsZero() {
		payload.Date = date.Format(dateLayout)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshot, body, asynq.Queue(QueueDefault)), nil
}

// NewEvaluateAlertsTask constructs an alert sweep task.
func NewEvaluateAlertsTask() *asynq.Task {
	return asynq.NewTask(TaskEvaluateAlerts, nil, asynq.Queue(QueueDefault))
}
