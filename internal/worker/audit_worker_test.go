package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
)

func TestAuditWorkerCountsAuthEvents(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	StartAuditWorker(dispatcher, zap.NewNop(), metrics)

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID: "e1", Type: events.EventUserLoggedIn, Email: "a@b.com", Timestamp: time.Now(),
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID: "e2", Type: events.EventLoginFailed, Email: "a@b.com", Timestamp: time.Now(),
		Payload: events.LoginFailedPayload{Reason: "invalid_credentials"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID: "e3", Type: events.EventLoginFailed, Email: "b@b.com", Timestamp: time.Now(),
	}))

	require.EqualValues(t, 1, metrics.AuthEventCount(string(events.EventUserLoggedIn)))
	require.EqualValues(t, 2, metrics.AuthEventCount(string(events.EventLoginFailed)))
	require.EqualValues(t, 0, metrics.AuthEventCount(string(events.EventUserRegistered)))
}

func TestAuditWorkerToleratesNilDispatcher(t *testing.T) {
	t.Parallel()

	StartAuditWorker(nil, zap.NewNop(), observability.NewMetrics())
}
