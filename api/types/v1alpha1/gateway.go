package v1alpha1

import "time"

// GatewayMessageType defines the commands accepted on the gateway control channel
type GatewayMessageType string

const (
	// GatewayMessageSkipWaiting activates a waiting gateway version immediately
	GatewayMessageSkipWaiting GatewayMessageType = "SKIP_WAITING"
	// GatewayMessageCacheURLs adds URLs to the static bucket on demand
	GatewayMessageCacheURLs GatewayMessageType = "CACHE_URLS"
)

// GatewayMessage is a control message sent from a page to the gateway
type GatewayMessage struct {
	// Type indicates the command
	Type GatewayMessageType `json:"type"`
	// URLs lists the URLs to cache for CACHE_URLS
	URLs []string `json:"urls,omitempty"`
}

// ClientMessageType defines messages pushed from the gateway to connected pages
type ClientMessageType string

const (
	// ClientMessageControllerChange tells a page a new gateway version took control
	ClientMessageControllerChange ClientMessageType = "CONTROLLER_CHANGE"
	// ClientMessageNotification carries a notification to display
	ClientMessageNotification ClientMessageType = "NOTIFICATION"
	// ClientMessageCloseNotification asks pages to dismiss a notification
	ClientMessageCloseNotification ClientMessageType = "CLOSE_NOTIFICATION"
	// ClientMessageOpenWindow asks a page to open or focus a window
	ClientMessageOpenWindow ClientMessageType = "OPEN_WINDOW"
)

// ClientMessage is a message delivered over the gateway client websocket
type ClientMessage struct {
	Type         ClientMessageType `json:"type"`
	Version      string            `json:"version,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	URL          string            `json:"url,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// NotificationAction is a button offered on a notification
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Notification describes a push notification to show
type Notification struct {
	Title   string                 `json:"title"`
	Body    string                 `json:"body"`
	Icon    string                 `json:"icon,omitempty"`
	Badge   string                 `json:"badge,omitempty"`
	Vibrate []int                  `json:"vibrate,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Actions []NotificationAction   `json:"actions,omitempty"`
}

// NotificationClick reports which action a user picked on a notification
type NotificationClick struct {
	Action string `json:"action"`
}

// GatewayState is the lifecycle state of the gateway worker
type GatewayState string

const (
	GatewayStateParsed     GatewayState = "parsed"
	GatewayStateInstalling GatewayState = "installing"
	GatewayStateInstalled  GatewayState = "installed"
	GatewayStateActivating GatewayState = "activating"
	GatewayStateActivated  GatewayState = "activated"
)

// GatewayStatus reports the gateway worker state
type GatewayStatus struct {
	Version       string       `json:"version"`
	State         GatewayState `json:"state"`
	StaticBucket  string       `json:"staticBucket"`
	DynamicBucket string       `json:"dynamicBucket"`
	Buckets       []string     `json:"buckets"`
	Clients       int          `json:"clients"`
}
