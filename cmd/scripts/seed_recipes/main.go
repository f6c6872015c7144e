package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/wuwenbin0122/recipebox/internal/auth"
	"github.com/wuwenbin0122/recipebox/internal/db"
	"github.com/wuwenbin0122/recipebox/internal/models"
	"github.com/wuwenbin0122/recipebox/internal/utils"
)

type seedRecipe struct {
	title        string
	instructions string
	minutes      int
}

type seedUser struct {
	username string
	password string
	imageURL string
	bio      string
	recipes  []seedRecipe
}

func main() {
	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
	}

	users := []seedUser{
		{
			username: "prince_ali",
			password: password,
			imageURL: "https://images.example.com/avatars/prince_ali.png",
			bio:      "Cooks mostly on weekends and always for a crowd.",
			recipes: []seedRecipe{
				{
					title:        "Weeknight Tomato Soup",
					instructions: "Sweat onions and garlic in butter, add canned tomatoes and stock, simmer twenty minutes, then blend until smooth and season.",
					minutes:      35,
				},
				{
					title:        "Skillet Cornbread",
					instructions: "Whisk cornmeal, flour, baking powder and salt; stir in buttermilk, eggs and melted butter, then bake in a hot greased skillet.",
					minutes:      40,
				},
			},
		},
		{
			username: "chef_mara",
			password: password,
			bio:      "Pastry first, questions later.",
			recipes: []seedRecipe{
				{
					title:        "Brown Butter Cookies",
					instructions: "Brown the butter and let it cool, cream with both sugars, beat in eggs, fold in flour and chocolate, chill the dough overnight and bake.",
					minutes:      60,
				},
			},
		},
	}

	usernames := make([]string, 0, len(users))
	for _, u := range users {
		usernames = append(usernames, u.username)
	}

	tx, err := postgres.Pool.Begin(ctx)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM recipes WHERE user_id IN (SELECT id FROM users WHERE username = ANY($1))", usernames); err != nil {
		log.Fatalf("delete existing recipes: %v", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM users WHERE username = ANY($1)", usernames); err != nil {
		log.Fatalf("delete existing users: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("commit tx: %v", err)
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	recipeCount := 0

	for _, u := range users {
		user := &models.User{Username: u.username}
		if u.imageURL != "" {
			user.ImageURL = &u.imageURL
		}
		if u.bio != "" {
			user.Bio = &u.bio
		}
		if err := user.SetPasswordFromPlaintext(hasher, u.password); err != nil {
			log.Fatalf("hash password for %s: %v", u.username, err)
		}
		if err := postgres.CreateUser(ctx, user); err != nil {
			log.Fatalf("insert user %s: %v", u.username, err)
		}

		for _, r := range u.recipes {
			ownerID := user.ID
			recipe := &models.Recipe{
				Title:             r.title,
				Instructions:      r.instructions,
				MinutesToComplete: r.minutes,
				UserID:            &ownerID,
			}
			if err := postgres.CreateRecipe(ctx, recipe); err != nil {
				log.Fatalf("insert recipe %q: %v", r.title, err)
			}
			recipeCount++
		}
	}

	log.Printf("seeded %d users and %d recipes", len(users), recipeCount)
}
