package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wuwenbin0122/recipebox/internal/models"
)

const recipeWithOwnerQuery = `SELECT r.id, r.title, r.instructions, r.minutes_to_complete, r.user_id,
       u.username, u.image_url, u.bio
  FROM recipes r
  LEFT JOIN users u ON u.id = r.user_id`

// CreateRecipe validates recipe, inserts it and reloads it with its owner,
// all inside one transaction.
func (p *Postgres) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	if err := recipe.Validate(); err != nil {
		return err
	}

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create recipe: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO recipes (title, instructions, minutes_to_complete, user_id) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	if err := tx.QueryRow(ctx, insert, recipe.Title, recipe.Instructions, recipe.MinutesToComplete, recipe.UserID).Scan(&id); err != nil {
		return classify("insert recipe", err)
	}

	saved, err := scanRecipe(tx.QueryRow(ctx, recipeWithOwnerQuery+` WHERE r.id = $1`, id))
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit recipe", err)
	}

	*recipe = *saved
	return nil
}

func (p *Postgres) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	rows, err := p.Pool.Query(ctx, recipeWithOwnerQuery+` ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recipes: %w", err)
	}
	defer rows.Close()

	recipes := make([]models.Recipe, 0)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *recipe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recipes: %w", err)
	}

	return recipes, nil
}

func scanRecipe(row pgx.Row) (*models.Recipe, error) {
	var (
		recipe   models.Recipe
		username *string
		imageURL *string
		bio      *string
	)
	if err := row.Scan(
		&recipe.ID,
		&recipe.Title,
		&recipe.Instructions,
		&recipe.MinutesToComplete,
		&recipe.UserID,
		&username,
		&imageURL,
		&bio,
	); err != nil {
		return nil, fmt.Errorf("postgres: scan recipe: %w", err)
	}

	if recipe.UserID != nil && username != nil {
		recipe.User = &models.User{
			ID:       *recipe.UserID,
			Username: *username,
			ImageURL: imageURL,
			Bio:      bio,
		}
	}

	return &recipe, nil
}
