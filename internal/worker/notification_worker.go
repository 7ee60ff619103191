package worker

import (
	"github.com/spec-kit/jobticket-service/internal/service"
)

// StartNotificationWorker registers the owner notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
