package gateway

import (
	"strings"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

// Push notification defaults
const (
	NotificationTitle       = "LexDesk CRM"
	DefaultNotificationBody = "Nueva notificación de LexDesk CRM"

	ActionExplore = "explore"
	ActionClose   = "close"
)

// HandlePush shows a notification built from payload to every client and
// returns it
func (w *Worker) HandlePush(payload []byte) v1alpha1.Notification {
	body := strings.TrimSpace(string(payload))
	if body == "" {
		body = DefaultNotificationBody
	}

	n := v1alpha1.Notification{
		Title:   NotificationTitle,
		Body:    body,
		Icon:    "/icons/icon-192x192.png",
		Badge:   "/icons/icon-72x72.png",
		Vibrate: []int{100, 50, 100},
		Data: map[string]interface{}{
			"dateOfArrival": w.now().UnixMilli(),
			"primaryKey":    1,
		},
		Actions: []v1alpha1.NotificationAction{
			{Action: ActionExplore, Title: "Ver detalles", Icon: "/icons/checkmark.png"},
			{Action: ActionClose, Title: "Cerrar", Icon: "/icons/xmark.png"},
		},
	}
	w.clients.ShowNotification(n)
	w.logger.Debug("push notification shown", "clients", w.clients.Count())
	return n
}

// HandleNotificationClick closes the notification and, for the explore
// action, opens the application root
func (w *Worker) HandleNotificationClick(action string) {
	w.clients.CloseNotification()
	if action == ActionExplore {
		w.clients.OpenWindow("/")
	}
}
