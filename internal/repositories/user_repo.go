package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resqlink/backend/internal/database"
	"github.com/resqlink/backend/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role, status string

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName,
		&role, &status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.Role = models.Role(role)
	user.Status = models.Status(status)
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, full_name, role, status, created_at, updated_at
		FROM users WHERE id = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, full_name, role, status, created_at, updated_at
		FROM users WHERE email = $1
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RoleCitizen
	}
	if user.Status == "" {
		user.Status = models.StatusPending
	}

	query := `
		INSERT INTO users (id, email, password_hash, full_name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, email, password_hash, full_name, role, status, created_at, updated_at
	`

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName,
		string(user.Role), string(user.Status), user.CreatedAt, user.UpdatedAt,
	))
}

// TOTPSecret returns the user's enrolled TOTP secret. Enrollment writes
// it; the auth core only ever reads.
func (r *UserRepository) TOTPSecret(ctx context.Context, userID string) (string, error) {
	query := `SELECT mfa_secret FROM users WHERE id = $1`

	var secret *string
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&secret); err != nil {
		return "", database.MapPostgresError(err)
	}
	if secret == nil || *secret == "" {
		return "", models.ErrNotFound
	}
	return *secret, nil
}

// UpdateStatus moves an account through its lifecycle (activation,
// suspension, ban).
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.User, error) {
	query := `
		UPDATE users SET status = $2, updated_at = $3 WHERE id = $1
		RETURNING id, email, password_hash, full_name, role, status, created_at, updated_at
	`

	return scanUserRow(r.pool.QueryRow(ctx, query, id, string(status), time.Now()))
}
