package notifiers

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes every reminder to the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, r Reminder) error {
	n.logger.Info("Reminder",
		zap.String("task_id", r.TaskID),
		zap.String("user_id", r.UserID),
		zap.String("type", r.Type),
		zap.Time("due_at", r.DueAt),
		zap.Time("remind_at", r.RemindAt),
	)
	return nil
}
