package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

// UserRepository reads the users table owned by the auth service.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, email, created_at
FROM users
WHERE id = $1
`, id)

	var user domain.User
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get user", "user", id)
		}
		return nil, classify("scan user", err)
	}
	return &user, nil
}
