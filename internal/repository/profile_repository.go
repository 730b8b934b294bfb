package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

const profileColumns = `id, email, password_hash, full_name, username, role, purchased_packages, created_at, updated_at`

// ProfileRepository handles profile data access.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	p := &model.Profile{}
	if err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &p.Username,
		&p.Role, &p.PurchasedPackages, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.PurchasedPackages == nil {
		p.PurchasedPackages = []string{}
	}
	return p, nil
}

// GetByEmail retrieves a profile by email for login.
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`, email))
}

// GetByID retrieves a profile by its UUID.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *model.Profile) error {
	if p.PurchasedPackages == nil {
		p.PurchasedPackages = []string{}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO profiles (email, password_hash, full_name, username, role, purchased_packages)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		p.Email, p.PasswordHash, p.FullName, p.Username, p.Role, p.PurchasedPackages,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}
