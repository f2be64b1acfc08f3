package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/service"
)

func TestStartNotificationWorker_SubscribesAccountEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher()

	StartNotificationWorker(service.NewNotificationService(dispatcher, logger, config.NotificationConfig{}), logger)

	started := logs.FilterMessage("account notification worker started").All()
	require.Len(t, started, 1)
	assert.Equal(t, []interface{}{"account_registered", "account_updated", "account_role_changed", "account_deleted"},
		started[0].ContextMap()["events"])

	require.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventAccountDeleted, 5, nil)))
	assert.Equal(t, 1, logs.FilterMessage("AccountDeleted").Len())
}

func TestStartNotificationWorker_NilService(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	StartNotificationWorker(nil, zap.New(core))

	assert.Equal(t, 1, logs.FilterMessage("account notifications disabled: no notification service").Len())
}
