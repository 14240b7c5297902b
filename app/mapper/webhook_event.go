package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

func WebhookEventToProto(item *entity.WebhookEvent) *types.WebhookEvent {
	if item == nil {
		return nil
	}

	return &types.WebhookEvent{
		Id:           item.ID,
		Provider:     item.Provider,
		EventType:    item.EventType,
		ExternalId:   derefString(item.ExternalID),
		RequestId:    item.RequestID,
		Payload:      rawPayload(item.PayloadJSON),
		ReceivedAt:   item.ReceivedAt.UTC().Format(time.RFC3339),
		Processed:    item.Processed,
		Success:      item.Success,
		Outcome:      item.Outcome,
		ErrorMessage: derefString(item.ErrorMessage),
		ProcessedAt:  formatTime(item.ProcessedAt),
	}
}

func WebhookEventsToProto(items []*entity.WebhookEvent) []*types.WebhookEvent {
	result := make([]*types.WebhookEvent, 0, len(items))
	for _, item := range items {
		result = append(result, WebhookEventToProto(item))
	}
	return result
}
