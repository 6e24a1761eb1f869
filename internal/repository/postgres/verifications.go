package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/safedrive/phone-verify/internal/core/domain"
	"github.com/safedrive/phone-verify/internal/core/port"
	"github.com/safedrive/phone-verify/internal/repository"
)

// VerificationRepository implements port.VerificationStore using PostgreSQL.
// Status transitions and attempt increments are expressed as conditional
// single-statement updates so concurrent confirm calls serialize on the row.
type VerificationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewVerificationRepository wires a PostgreSQL-backed verification store.
func NewVerificationRepository(exec pgExecutor) *VerificationRepository {
	return &VerificationRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new verification row.
func (r *VerificationRepository) Create(ctx context.Context, record domain.VerificationRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("verification id is required")
	}

	var deliveryValue any
	if record.DeliveryStatus != nil {
		deliveryValue = string(*record.DeliveryStatus)
	}

	var providerValue any
	if record.ProviderMessageID != nil && *record.ProviderMessageID != "" {
		providerValue = *record.ProviderMessageID
	}

	query := r.builder.Insert("verify.verifications").
		Columns(
			"id",
			"phone_number",
			"secret_digest",
			"attempts",
			"max_attempts",
			"status",
			"delivery_status",
			"provider_message_id",
			"created_at",
			"expires_at",
			"verified_at",
		).
		Values(
			record.ID,
			record.PhoneNumber,
			record.SecretDigest,
			record.Attempts,
			record.MaxAttempts,
			record.Status,
			deliveryValue,
			providerValue,
			record.CreatedAt,
			record.ExpiresAt,
			record.VerifiedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert verification sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}

	return nil
}

// Get retrieves a verification record by id.
func (r *VerificationRepository) Get(ctx context.Context, id string) (*domain.VerificationRecord, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"phone_number",
			"secret_digest",
			"attempts",
			"max_attempts",
			"status",
			"delivery_status",
			"provider_message_id",
			"created_at",
			"expires_at",
			"verified_at",
		).
		From("verify.verifications").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		record     domain.VerificationRecord
		delivery   sql.NullString
		providerID sql.NullString
		verifiedAt *time.Time
	)

	if err := row.Scan(
		&record.ID,
		&record.PhoneNumber,
		&record.SecretDigest,
		&record.Attempts,
		&record.MaxAttempts,
		&record.Status,
		&delivery,
		&providerID,
		&record.CreatedAt,
		&record.ExpiresAt,
		&verifiedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification: %w", err)
	}

	record.VerifiedAt = verifiedAt
	if delivery.Valid {
		status := domain.DeliveryStatus(delivery.String)
		record.DeliveryStatus = &status
	}
	if providerID.Valid {
		val := providerID.String
		record.ProviderMessageID = &val
	}

	return &record, nil
}

// TransitionStatus atomically moves a record between statuses. The WHERE
// clause on the expected status makes the transition a compare-and-swap;
// exactly one of any number of racing callers observes true.
func (r *VerificationRepository) TransitionStatus(ctx context.Context, id string, from, to domain.VerificationStatus) (bool, error) {
	update := r.builder.Update("verify.verifications").
		Set("status", to).
		Where(squirrel.Eq{"id": id, "status": from})

	if to == domain.VerificationStatusVerified {
		update = update.Set("verified_at", time.Now().UTC())
	}

	stmt, args, err := update.ToSql()
	if err != nil {
		return false, fmt.Errorf("build transition status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("transition verification status: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// IncrementAttempts bumps the attempt counter while the record is pending and
// under budget. The guard on max_attempts bounds the counter under any
// interleaving of concurrent confirms.
func (r *VerificationRepository) IncrementAttempts(ctx context.Context, id string) (int, bool, error) {
	stmt := `
		UPDATE verify.verifications
		   SET attempts = attempts + 1
		 WHERE id = $1
		   AND status = $2
		   AND attempts < max_attempts
		RETURNING attempts
	`

	row := r.exec.QueryRow(ctx, stmt, id, domain.VerificationStatusPending)

	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("increment verification attempts: %w", err)
	}

	return attempts, true, nil
}

// SetDeliveryStatus records the SMS delivery outcome on the record.
func (r *VerificationRepository) SetDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus, providerMessageID string) error {
	update := r.builder.Update("verify.verifications").
		Set("delivery_status", status).
		Where(squirrel.Eq{"id": id})

	if providerMessageID != "" {
		update = update.Set("provider_message_id", providerMessageID)
	}

	stmt, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build set delivery status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set delivery status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// DeleteExpiredBatch removes up to limit records past their expiry.
func (r *VerificationRepository) DeleteExpiredBatch(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("limit must be positive")
	}

	stmt := `
		DELETE FROM verify.verifications
		 WHERE id IN (
				SELECT id
				  FROM verify.verifications
				 WHERE expires_at < $1
				 ORDER BY expires_at ASC
				 LIMIT $2
		 )
	`

	ct, err := r.exec.Exec(ctx, stmt, before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired verifications: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

var _ port.VerificationStore = (*VerificationRepository)(nil)
