package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity-webhooks/core"
)

// DeliveryStore is the bun-backed delivery ledger. The (source,
// delivery_id) unique index is the idempotency guarantee: concurrent
// receivers race on the insert and exactly one wins the claim.
type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryRecord](db, deliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *DeliveryStore) Claim(
	ctx context.Context,
	source string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (core.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	source = strings.TrimSpace(source)
	deliveryID = strings.TrimSpace(deliveryID)
	if source == "" || deliveryID == "" {
		return core.DeliveryRecord{}, false, fmt.Errorf("sqlstore: source and delivery id are required")
	}
	if lease <= 0 {
		lease = core.DefaultClaimLease
	}
	now := time.Now().UTC()

	record := &deliveryRecord{
		ID:         uuid.NewString(),
		ClaimID:    uuid.NewString(),
		Source:     source,
		DeliveryID: deliveryID,
		Status:     string(core.DeliveryStatusProcessing),
		Attempts:   1,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if env, decodeErr := core.DecodeEnvelope(payload); decodeErr == nil {
		record.EventType = env.Type
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return core.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, source, deliveryID, payload, lease, now)
	}
	return deliveryToDomain(record), true, nil
}

// reclaim re-takes an existing row when its previous claim is no longer
// live: lease expired mid-processing, or the retry time arrived. The claim
// id acts as an optimistic guard so two receivers cannot both win.
func (s *DeliveryStore) reclaim(
	ctx context.Context,
	source string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
	now time.Time,
) (core.DeliveryRecord, bool, error) {
	existing, err := s.Get(ctx, source, deliveryID)
	if err != nil {
		return core.DeliveryRecord{}, false, err
	}

	claimable := false
	switch existing.Status {
	case core.DeliveryStatusProcessing:
		claimable = now.Sub(existing.UpdatedAt) >= lease
	case core.DeliveryStatusRetryReady:
		claimable = existing.NextAttemptAt == nil || !now.Before(*existing.NextAttemptAt)
	case core.DeliveryStatusPending:
		claimable = true
	}
	if !claimable {
		return existing, false, nil
	}

	claimID := uuid.NewString()
	update := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", string(core.DeliveryStatusProcessing)).
		Set("attempts = ?", existing.Attempts+1).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("source = ?", source).
		Where("delivery_id = ?", deliveryID).
		Where("claim_id = ?", existing.ClaimID)
	if len(existing.Payload) == 0 && len(payload) > 0 {
		update = update.Set("payload = ?", payload)
	}
	result, err := update.Exec(ctx)
	if err != nil {
		return core.DeliveryRecord{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.DeliveryRecord{}, false, err
	}
	if affected == 0 {
		// Another receiver took the claim between our read and write.
		return existing, false, nil
	}

	claimed, err := s.Get(ctx, source, deliveryID)
	if err != nil {
		return core.DeliveryRecord{}, false, err
	}
	return claimed, true, nil
}

func (s *DeliveryStore) Get(
	ctx context.Context,
	source string,
	deliveryID string,
) (core.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return core.DeliveryRecord{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.source = ?", strings.TrimSpace(source)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.DeliveryRecord{}, fmt.Errorf(
				"sqlstore: delivery not found for source %q delivery %q",
				source,
				deliveryID,
			)
		}
		return core.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

func (s *DeliveryStore) ListRetryReady(
	ctx context.Context,
	source string,
	limit int,
) ([]core.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	now := time.Now().UTC()
	query := s.db.NewSelect().
		Model((*deliveryRecord)(nil)).
		Where("?TableAlias.status = ?", string(core.DeliveryStatusRetryReady)).
		Where("?TableAlias.next_attempt_at IS NULL OR ?TableAlias.next_attempt_at <= ?", now).
		OrderExpr("?TableAlias.next_attempt_at ASC")
	if source = strings.TrimSpace(source); source != "" {
		query = query.Where("?TableAlias.source = ?", source)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []*deliveryRecord
	if err := query.Scan(ctx, &records); err != nil {
		return nil, err
	}
	ready := make([]core.DeliveryRecord, 0, len(records))
	for _, record := range records {
		ready = append(ready, deliveryToDomain(record))
	}
	return ready, nil
}

func (s *DeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusProcessed)).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("claim_id = ?", claimID).
		Where("status = ?", string(core.DeliveryStatusProcessing)).
		Exec(ctx)
	return err
}

func (s *DeliveryStore) Fail(
	ctx context.Context,
	claimID string,
	cause error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}

	record := &deliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_id = ?", claimID).
		Where("?TableAlias.status = ?", string(core.DeliveryStatusProcessing)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	update := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("claim_id = ?", claimID).
		Where("status = ?", string(core.DeliveryStatusProcessing))
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		update = update.
			Set("status = ?", string(core.DeliveryStatusDead)).
			Set("next_attempt_at = NULL")
	} else {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		update = update.
			Set("status = ?", string(core.DeliveryStatusRetryReady)).
			Set("next_attempt_at = ?", nextAttemptAt.UTC())
	}
	_, err = update.Exec(ctx)
	return err
}

func (s *DeliveryStore) MarkDead(
	ctx context.Context,
	source string,
	deliveryID string,
	reason string,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusDead)).
		Set("last_error = ?", strings.TrimSpace(reason)).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("source = ?", strings.TrimSpace(source)).
		Where("delivery_id = ?", strings.TrimSpace(deliveryID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf(
			"sqlstore: delivery not found for source %q delivery %q",
			source,
			deliveryID,
		)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
