package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/wuwenbin0122/recipebox/internal/db"
	"github.com/wuwenbin0122/recipebox/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		panic(err)
	}
	defer postgres.Close()

	const query = `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`

	for _, table := range []string{"users", "recipes"} {
		rows, err := postgres.Pool.Query(ctx, query, table)
		if err != nil {
			panic(err)
		}

		fmt.Printf("%s:\n", table)
		for rows.Next() {
			var name, dataType, nullable string
			if err := rows.Scan(&name, &dataType, &nullable); err != nil {
				rows.Close()
				panic(err)
			}
			fmt.Printf("- %s (%s, nullable=%s)\n", name, dataType, nullable)
		}
		rows.Close()

		if rows.Err() != nil {
			panic(rows.Err())
		}
	}

	var users, recipes int
	if err := postgres.Pool.QueryRow(ctx, "SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM recipes)").Scan(&users, &recipes); err != nil {
		panic(err)
	}
	fmt.Printf("rows: %d users, %d recipes\n", users, recipes)
}
