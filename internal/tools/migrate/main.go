package main

import (
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/quizdash/quizdash/internal/dbconfig"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	source := os.Getenv("MIGRATIONS_PATH")
	if source == "" {
		source = "file://db/migrations"
	}

	cfg := dbconfig.FromEnv()
	// pool_max_conns is a pgxpool option the migrate driver does not accept.
	cfg.MaxConns = 0
	m, err := migrate.New(source, cfg.DSN())
	if err != nil {
		log.Fatalf("migration setup failed: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")
}
