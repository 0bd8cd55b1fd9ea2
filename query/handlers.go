package query

import (
	"context"

	"github.com/goliatone/go-identity-webhooks/core"
)

// DeliveryReader is the read surface queries drive. Any core.DeliveryLedger
// satisfies it.
type DeliveryReader interface {
	Get(ctx context.Context, source string, deliveryID string) (core.DeliveryRecord, error)
	ListRetryReady(ctx context.Context, source string, limit int) ([]core.DeliveryRecord, error)
}

type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (core.DeliveryRecord, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryRecord{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.Get(ctx, msg.Source, msg.DeliveryID)
}

type ListRetryReadyQuery struct {
	reader DeliveryReader
}

func NewListRetryReadyQuery(reader DeliveryReader) *ListRetryReadyQuery {
	return &ListRetryReadyQuery{reader: reader}
}

func (q *ListRetryReadyQuery) Query(ctx context.Context, msg ListRetryReadyMessage) ([]core.DeliveryRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListRetryReady(ctx, msg.Source, msg.Limit)
}

type GetDeliveryStatusQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryStatusQuery(reader DeliveryReader) *GetDeliveryStatusQuery {
	return &GetDeliveryStatusQuery{reader: reader}
}

func (q *GetDeliveryStatusQuery) Query(
	ctx context.Context,
	msg GetDeliveryStatusMessage,
) (core.DeliveryStatus, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: delivery reader is required")
	}
	record, err := q.reader.Get(ctx, msg.Source, msg.DeliveryID)
	if err != nil {
		return "", err
	}
	return record.Status, nil
}
