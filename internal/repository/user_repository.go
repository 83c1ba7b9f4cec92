package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// UserRepo reads users.  Account management lives outside the seat
// inventory; only lookups by email are needed here.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByEmailTx fetches a user by normalized email.  It returns
// ErrUserNotFound when no row matches.
func (r *UserRepo) GetByEmailTx(ctx context.Context, tx *sql.Tx, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := tx.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,is_active FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
