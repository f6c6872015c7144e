package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/wuwenbin0122/recipebox/internal/db"
	"github.com/wuwenbin0122/recipebox/internal/utils"
)

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

	if err := postgres.ResetSchema(ctx); err != nil {
		log.Fatalf("reset schema: %v", err)
	}
	if err := postgres.EnsureSchema(ctx); err != nil {
		log.Fatalf("recreate schema: %v", err)
	}

	log.Println("users and recipes tables recreated")
}
