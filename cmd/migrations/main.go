package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/livepoll/internal/config"
)

// Usage:
//
//	migrations            apply every pending migration
//	migrations NAME       run the one file matching NAME, e.g. create_votes.down
func main() {
	log := logrus.New()
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Fatal("error loading .env file")
	}

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = config.DBConnString()
	}
	if connStr == "" {
		log.Fatal("DATABASE_URL or POSTGRES_* variables are required")
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	ctx := context.Background()

	if flag.NArg() == 0 {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		fmt.Println("All migrations applied.")
		return
	}

	file, err := postgres.ApplyMigration(ctx, db, flag.Arg(0))
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	fmt.Printf("Migration file %s executed successfully.\n", file)
}
