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

func TestIdentityRepository_FindByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	createdAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	lastLogin := createdAt.Add(48 * time.Hour)

	mock.ExpectQuery(`SELECT .+ FROM verify\.identities`).
		WithArgs("+94771234567").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "phone_number", "phone_verified", "is_active", "auth_method",
			"preferences", "stats", "created_at", "updated_at", "last_login",
		}).AddRow(
			"user-1", "+94771234567", true, true, domain.AuthMethodPhone,
			[]byte(`{"language":"si","theme":"dark","notifications":{"safety_alerts":true,"journey_updates":false,"emergency_alerts":true,"system_announcements":false}}`),
			[]byte(`{"today_trips":2,"total_trips":120,"carbon_saved":14.5,"points_earned":300,"safety_score":4.7}`),
			createdAt, createdAt, &lastLogin,
		))

	identity, err := repo.FindByPhone(context.Background(), "+94771234567")
	if err != nil {
		t.Fatalf("FindByPhone returned error: %v", err)
	}

	if identity.ID != "user-1" {
		t.Fatalf("unexpected id %q", identity.ID)
	}
	if !identity.PhoneVerified {
		t.Fatal("phone_verified not mapped")
	}
	if identity.Preferences.Language != "si" || identity.Preferences.Theme != "dark" {
		t.Fatalf("preferences not decoded: %+v", identity.Preferences)
	}
	if identity.Preferences.Notifications.JourneyUpdates {
		t.Fatal("notification toggles not decoded")
	}
	if identity.Stats.TotalTrips != 120 || identity.Stats.SafetyScore != 4.7 {
		t.Fatalf("stats not decoded: %+v", identity.Stats)
	}
	if identity.LastLogin == nil || !identity.LastLogin.Equal(lastLogin) {
		t.Fatalf("last login not mapped: %v", identity.LastLogin)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_FindByPhoneNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM verify\.identities`).
		WithArgs("+94771234567").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "phone_number", "phone_verified", "is_active", "auth_method",
			"preferences", "stats", "created_at", "updated_at", "last_login",
		}))

	if _, err := repo.FindByPhone(context.Background(), "+94771234567"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	identity := domain.Identity{
		ID:            "user-1",
		PhoneNumber:   "+94771234567",
		PhoneVerified: true,
		IsActive:      true,
		AuthMethod:    domain.AuthMethodPhone,
		Preferences:   domain.DefaultPreferences(),
		Stats:         domain.DefaultStats(),
		CreatedAt:     now,
		UpdatedAt:     now,
		LastLogin:     &now,
	}

	mock.ExpectExec(`INSERT INTO verify\.identities`).
		WithArgs(
			identity.ID,
			identity.PhoneNumber,
			identity.PhoneVerified,
			identity.IsActive,
			identity.AuthMethod,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			identity.CreatedAt,
			identity.UpdatedAt,
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), identity); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_MarkPhoneVerified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	lastLogin := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE verify\.identities`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.MarkPhoneVerified(context.Background(), "user-1", lastLogin); err != nil {
		t.Fatalf("MarkPhoneVerified returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE verify\.identities`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkPhoneVerified(context.Background(), "missing", lastLogin); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
