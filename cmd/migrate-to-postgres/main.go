// migrate-to-postgres copies archived simulations from an SQLite archive to
// a shared PostgreSQL archive. Simulations already present are skipped, so
// the tool can be re-run.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/clanksim.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user clanksim \
//	    -pg-password clanksim \
//	    -pg-database clanksim
package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/lawnchairsociety/clanksim/internal/database"
)

func main() {
	sqlitePath := flag.String("sqlite", "data/clanksim.db", "Path to SQLite archive")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "clanksim", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "clanksim", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Archive Migration")
	log.Println("======================================")

	log.Printf("Opening SQLite archive: %s", *sqlitePath)
	src, err := database.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite archive: %v", err)
	}
	defer src.Close()

	pgConfig := database.Config{
		Driver:   string(database.DialectPostgres),
		Postgres: database.DefaultPostgresConfig(),
	}
	pgConfig.Postgres.Host = *pgHost
	pgConfig.Postgres.Port = *pgPort
	pgConfig.Postgres.User = *pgUser
	pgConfig.Postgres.Password = *pgPassword
	pgConfig.Postgres.Database = *pgDatabase
	pgConfig.Postgres.SSLMode = *pgSSLMode

	log.Printf("Opening PostgreSQL archive: %s@%s:%d/%s", *pgUser, *pgHost, *pgPort, *pgDatabase)
	dst, err := database.OpenWithConfig(pgConfig)
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL archive: %v", err)
	}
	defer dst.Close()

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
	}

	copied, skipped, err := migrate(context.Background(), src, dst, *dryRun)
	if err != nil {
		log.Fatalf("Migration failed after %d simulations: %v", copied, err)
	}

	log.Println("======================================")
	log.Printf("Migration complete! Simulations copied: %d, already present: %d", copied, skipped)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}

// migrate copies every simulation in src to dst, keeping its ID.
func migrate(ctx context.Context, src, dst *database.Database, dryRun bool) (copied, skipped int, err error) {
	ids, err := src.SimulationIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, id := range ids {
		sim, err := src.LoadSimulation(ctx, id)
		if err != nil {
			return copied, skipped, err
		}
		if dryRun {
			copied++
			continue
		}

		if _, err := dst.SaveSimulation(ctx, sim); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				skipped++
				continue
			}
			return copied, skipped, err
		}
		log.Printf("  Copied %s (%s, %d runs)", sim.ID, sim.Label, sim.Trials)
		copied++
	}
	return copied, skipped, nil
}
