package main

import (
	"errors"
	"flag"
	"os"

	"github.com/aimerfeng/ChallengeHive/internal/database"
	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure zerolog for pretty console output
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command     string
		steps       int
		databaseURL string
	)

	flag.StringVar(&command, "command", "up", "Migration command: up, down, force, version")
	flag.IntVar(&steps, "steps", 0, "Number of migrations to run (0 = all); version for force")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	log.Info().
		Str("command", command).
		Int("steps", steps).
		Msg("Starting migration")

	var err error
	switch command {
	case "up":
		err = runUp(databaseURL, steps)
	case "down":
		err = runDown(databaseURL, steps)
	case "force":
		if steps == 0 {
			log.Fatal().Msg("Force command requires -steps flag with version number")
		}
		err = withMigrator(databaseURL, func(m *migrate.Migrate) error { return m.Force(steps) })
	case "version":
		err = withMigrator(databaseURL, func(m *migrate.Migrate) error {
			version, dirty, verr := m.Version()
			if errors.Is(verr, migrate.ErrNilVersion) {
				log.Info().Msg("No migrations have been applied yet")
				return nil
			}
			if verr != nil {
				return verr
			}
			log.Info().
				Uint("version", version).
				Bool("dirty", dirty).
				Msg("Current migration version")
			return nil
		})
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("No migrations to apply")
			return
		}
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migration completed successfully")
}

func withMigrator(databaseURL string, fn func(m *migrate.Migrate) error) error {
	m, err := database.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func runUp(databaseURL string, steps int) error {
	if steps > 0 {
		return withMigrator(databaseURL, func(m *migrate.Migrate) error { return m.Steps(steps) })
	}
	return database.RunMigrations(databaseURL)
}

func runDown(databaseURL string, steps int) error {
	if steps > 0 {
		return database.RollbackMigration(databaseURL, steps)
	}
	return withMigrator(databaseURL, func(m *migrate.Migrate) error { return m.Down() })
}
