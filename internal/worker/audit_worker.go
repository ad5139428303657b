package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
)

// StartAuditWorker subscribes an audit handler to every auth event type:
// each event is written to the structured audit log and counted in metrics.
// Auditing is best effort and synchronous; it never affects request
// outcomes.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) {
	if dispatcher == nil {
		return
	}

	audit := logger.Named("audit")
	handler := func(_ context.Context, event events.Event) error {
		metrics.RecordAuthEvent(string(event.Type))
		audit.Info("auth event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("email", event.Email),
			zap.String("user_id", event.UserID),
			zap.Time("at", event.Timestamp),
			zap.Any("payload", event.Payload),
		)
		return nil
	}

	dispatcher.Subscribe(events.EventUserRegistered, handler)
	dispatcher.Subscribe(events.EventUserLoggedIn, handler)
	dispatcher.Subscribe(events.EventLoginFailed, handler)
}
