package client

import (
	"context"
	"net/http"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

const gatewayPrefix = "/_gateway"

// GatewayStatus returns the gateway worker state
func (c *Client) GatewayStatus(ctx context.Context) (*v1alpha1.GatewayStatus, error) {
	var status v1alpha1.GatewayStatus
	if err := c.call(ctx, http.MethodGet, gatewayPrefix+"/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SendGatewayMessage posts a control message and returns the resulting state
func (c *Client) SendGatewayMessage(ctx context.Context, msg v1alpha1.GatewayMessage) (*v1alpha1.GatewayStatus, error) {
	var status v1alpha1.GatewayStatus
	if err := c.call(ctx, http.MethodPost, gatewayPrefix+"/message", nil, msg, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Push delivers a push payload and returns the notification shown
func (c *Client) Push(ctx context.Context, payload string) (*v1alpha1.Notification, error) {
	var n v1alpha1.Notification
	if err := c.call(ctx, http.MethodPost, gatewayPrefix+"/push", nil, []byte(payload), &n); err != nil {
		return nil, err
	}
	return &n, nil
}
