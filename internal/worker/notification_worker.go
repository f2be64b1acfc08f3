package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/service"
)

// accountEventTypes are the lifecycle events the notification service subscribes to.
var accountEventTypes = []events.EventType{
	events.EventAccountRegistered,
	events.EventAccountUpdated,
	events.EventAccountRoleChanged,
	events.EventAccountDeleted,
}

// StartNotificationWorker subscribes the notification service to account lifecycle events.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notificationService == nil {
		logger.Warn("account notifications disabled: no notification service")
		return
	}
	notificationService.RegisterHandlers()

	names := make([]string, 0, len(accountEventTypes))
	for _, eventType := range accountEventTypes {
		names = append(names, string(eventType))
	}
	logger.Info("account notification worker started", zap.Strings("events", names))
}
