package clients

import (
	"context"
	"fmt"

	ws "inmo-payments/internal/transport/websocket"
)

// NotificationClient pushes plan events to the hub: applied payments and the
// schedule-export lifecycle.
type NotificationClient struct {
	hub *ws.Hub
}

func NewNotificationClient(hub *ws.Hub) *NotificationClient {
	return &NotificationClient{hub: hub}
}

func (c *NotificationClient) NotifyPaymentApplied(ctx context.Context, userID int64, planID int64, reference, amount string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "payment_applied",
		Channel: fmt.Sprintf("plan_payments#%d", userID),
		Data: map[string]interface{}{
			"plan_id":   planID,
			"reference": reference,
			"amount":    amount,
		},
	}
	c.hub.Broadcast(userID, message)
	return nil
}

func (c *NotificationClient) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"id":       exportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}
	message := &ws.Message{
		Type:    "export_progress",
		Channel: fmt.Sprintf("schedule_export_progress#%d", userID),
		Data:    data,
	}
	c.hub.Broadcast(userID, message)
	return nil
}

func (c *NotificationClient) NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "export_complete",
		Channel: fmt.Sprintf("schedule_export_complete#%d", userID),
		Data: map[string]interface{}{
			"id":       exportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	}
	c.hub.Broadcast(userID, message)
	return nil
}

func (c *NotificationClient) NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	message := &ws.Message{
		Type:    "export_failed",
		Channel: fmt.Sprintf("schedule_export_failed#%d", userID),
		Data: map[string]interface{}{
			"id":      exportID,
			"message": errMsg,
			"user_id": userID,
		},
	}
	c.hub.Broadcast(userID, message)
	return nil
}
