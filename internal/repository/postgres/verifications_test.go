package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/safedrive/phone-verify/internal/core/domain"
	"github.com/safedrive/phone-verify/internal/repository"
)

func TestVerificationRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock)

	createdAt := time.Now().UTC()
	record := domain.VerificationRecord{
		ID:           "ver-123",
		PhoneNumber:  "+94771234567",
		SecretDigest: "digest",
		Attempts:     0,
		MaxAttempts:  3,
		Status:       domain.VerificationStatusPending,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(10 * time.Minute),
	}

	mock.ExpectExec(`INSERT INTO verify\.verifications`).
		WithArgs(
			record.ID,
			record.PhoneNumber,
			record.SecretDigest,
			record.Attempts,
			record.MaxAttempts,
			record.Status,
			nil,
			nil,
			record.CreatedAt,
			record.ExpiresAt,
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM verify\.verifications`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "phone_number", "secret_digest", "attempts", "max_attempts",
			"status", "delivery_status", "provider_message_id", "created_at",
			"expires_at", "verified_at",
		}))

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_TransitionStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock)

	mock.ExpectExec(`UPDATE verify\.verifications SET status`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.TransitionStatus(context.Background(), "ver-123", domain.VerificationStatusPending, domain.VerificationStatusExpired)
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected transition to apply")
	}

	mock.ExpectExec(`UPDATE verify\.verifications SET status`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err = repo.TransitionStatus(context.Background(), "ver-123", domain.VerificationStatusPending, domain.VerificationStatusExpired)
	if err != nil {
		t.Fatalf("TransitionStatus returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected transition to be rejected when status already changed")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_IncrementAttempts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock)

	mock.ExpectQuery(`UPDATE verify\.verifications`).
		WithArgs("ver-123", domain.VerificationStatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(2))

	attempts, applied, err := repo.IncrementAttempts(context.Background(), "ver-123")
	if err != nil {
		t.Fatalf("IncrementAttempts returned error: %v", err)
	}
	if !applied || attempts != 2 {
		t.Fatalf("expected (2, true), got (%d, %v)", attempts, applied)
	}

	// Budget exhausted or record no longer pending: no row comes back.
	mock.ExpectQuery(`UPDATE verify\.verifications`).
		WithArgs("ver-123", domain.VerificationStatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}))

	_, applied, err = repo.IncrementAttempts(context.Background(), "ver-123")
	if err != nil {
		t.Fatalf("IncrementAttempts returned error: %v", err)
	}
	if applied {
		t.Fatalf("expected increment to be rejected")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVerificationRepository_DeleteExpiredBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewVerificationRepository(mock)

	before := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM verify\.verifications`).
		WithArgs(before, 100).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	deleted, err := repo.DeleteExpiredBatch(context.Background(), before, 100)
	if err != nil {
		t.Fatalf("DeleteExpiredBatch returned error: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected 7 deletions, got %d", deleted)
	}

	if _, err := repo.DeleteExpiredBatch(context.Background(), before, 0); err == nil {
		t.Fatalf("expected error for non-positive limit")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
