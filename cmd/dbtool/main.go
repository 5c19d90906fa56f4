package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"rider-tracking-service/internal/adapters/repositories"
	"rider-tracking-service/internal/config"
	"rider-tracking-service/internal/platform/db"
	"rider-tracking-service/pkg/logger"
)

// dbtool prepares the Postgres fix history and can print the recent fixes of an order.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	orderID := flag.String("order", "", "print the recorded fixes of this order instead of initializing")
	limit := flag.Int("limit", 20, "maximum number of fixes to print")
	flag.Parse()

	lg := logger.Init(logger.Options{
		Level:  config.Get("LOG_LEVEL", "info"),
		Pretty: true,
	})

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		lg.Fatal().Msg("DATABASE_URL is required")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		lg.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	if *orderID != "" {
		if err := printFixes(ctx, conn, *orderID, *limit); err != nil {
			lg.Fatal().Err(err).Msg("list fixes")
		}
		return
	}

	lg.Info().Msg("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		lg.Fatal().Err(err).Msg("schema initialization failed")
	}
	lg.Info().Msg("schema ready")
}

func printFixes(ctx context.Context, conn *sql.DB, orderID string, limit int) error {
	repo := repositories.NewPgFixRepository(conn, nil)
	fixes, err := repo.ListFixes(ctx, orderID, limit)
	if err != nil {
		return err
	}
	for _, f := range fixes {
		fmt.Printf("%s\t%.6f\t%.6f\t%.1f\n", f.Timestamp.Format("2006-01-02T15:04:05Z07:00"), f.Lat, f.Lng, f.Accuracy)
	}
	return nil
}
