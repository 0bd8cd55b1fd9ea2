package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity-webhooks/core"
)

type deliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID            string     `bun:"id,pk"`
	ClaimID       string     `bun:"claim_id,notnull"`
	Source        string     `bun:"source,notnull"`
	DeliveryID    string     `bun:"delivery_id,notnull"`
	EventType     string     `bun:"event_type"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func deliveryToDomain(record *deliveryRecord) core.DeliveryRecord {
	if record == nil {
		return core.DeliveryRecord{}
	}
	result := core.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		Source:     record.Source,
		DeliveryID: record.DeliveryID,
		EventType:  record.EventType,
		Status:     core.DeliveryStatus(record.Status),
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		Payload:    append([]byte(nil), record.Payload...),
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := record.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	return result
}
