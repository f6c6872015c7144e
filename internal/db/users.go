package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wuwenbin0122/recipebox/internal/auth"
	"github.com/wuwenbin0122/recipebox/internal/models"
)

const userColumns = `id, username, password_hash, image_url, bio`

// CreateUser inserts user inside a transaction and fills in its id. A
// rejected insert leaves no row behind.
func (p *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create user: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `INSERT INTO users (username, password_hash, image_url, bio) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	if err := tx.QueryRow(ctx, query, user.Username, user.PasswordValuer(), user.ImageURL, user.Bio).Scan(&id); err != nil {
		return classify("insert user", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit user", err)
	}

	user.ID = id
	return nil
}

func (p *Postgres) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(p.Pool.QueryRow(ctx, query, id))
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(p.Pool.QueryRow(ctx, query, username))
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		id       int64
		username string
		password auth.Credential
		imageURL *string
		bio      *string
	)
	if err := row.Scan(&id, &username, &password, &imageURL, &bio); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres: query user: %w", err)
	}

	return models.RestoreUser(id, username, imageURL, bio, password), nil
}

// DeleteUser removes a user; its recipes keep existing without an owner.
func (p *Postgres) DeleteUser(ctx context.Context, id int64) error {
	tag, err := p.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return classify("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
