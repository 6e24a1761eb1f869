package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/safedrive/phone-verify/internal/core/domain"
	"github.com/safedrive/phone-verify/internal/core/port"
	"github.com/safedrive/phone-verify/internal/repository"
)

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
// Preferences and stats are stored as JSONB documents.
type IdentityRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository wires a PostgreSQL-backed identity repository.
func NewIdentityRepository(exec pgExecutor) *IdentityRepository {
	return &IdentityRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindByPhone retrieves an identity by canonical phone number.
func (r *IdentityRepository) FindByPhone(ctx context.Context, phoneNumber string) (*domain.Identity, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return nil, fmt.Errorf("phone number is required")
	}

	stmt, args, err := r.builder.
		Select(
			"id",
			"phone_number",
			"phone_verified",
			"is_active",
			"auth_method",
			"preferences",
			"stats",
			"created_at",
			"updated_at",
			"last_login",
		).
		From("verify.identities").
		Where(squirrel.Eq{"phone_number": phoneNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		identity    domain.Identity
		preferences []byte
		stats       []byte
		lastLogin   *time.Time
	)

	if err := row.Scan(
		&identity.ID,
		&identity.PhoneNumber,
		&identity.PhoneVerified,
		&identity.IsActive,
		&identity.AuthMethod,
		&preferences,
		&stats,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&lastLogin,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	identity.LastLogin = lastLogin
	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &identity.Preferences); err != nil {
			return nil, fmt.Errorf("decode identity preferences: %w", err)
		}
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &identity.Stats); err != nil {
			return nil, fmt.Errorf("decode identity stats: %w", err)
		}
	}

	return &identity, nil
}

// Create inserts a new identity row.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	if strings.TrimSpace(identity.ID) == "" {
		return fmt.Errorf("identity id is required")
	}
	if strings.TrimSpace(identity.PhoneNumber) == "" {
		return fmt.Errorf("phone number is required")
	}

	preferences, err := json.Marshal(identity.Preferences)
	if err != nil {
		return fmt.Errorf("encode identity preferences: %w", err)
	}
	stats, err := json.Marshal(identity.Stats)
	if err != nil {
		return fmt.Errorf("encode identity stats: %w", err)
	}

	query := r.builder.Insert("verify.identities").
		Columns(
			"id",
			"phone_number",
			"phone_verified",
			"is_active",
			"auth_method",
			"preferences",
			"stats",
			"created_at",
			"updated_at",
			"last_login",
		).
		Values(
			identity.ID,
			identity.PhoneNumber,
			identity.PhoneVerified,
			identity.IsActive,
			identity.AuthMethod,
			preferences,
			stats,
			identity.CreatedAt,
			identity.UpdatedAt,
			identity.LastLogin,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// MarkPhoneVerified flags an identity as phone-verified and refreshes the
// last login timestamp.
func (r *IdentityRepository) MarkPhoneVerified(ctx context.Context, id string, lastLogin time.Time) error {
	stmt, args, err := r.builder.Update("verify.identities").
		Set("phone_verified", true).
		Set("last_login", lastLogin).
		Set("updated_at", lastLogin).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark phone verified sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark phone verified: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
