package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Verifications *VerificationRepository
	Identities    *IdentityRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Verifications: NewVerificationRepository(pool),
		Identities:    NewIdentityRepository(pool),
	}
}
