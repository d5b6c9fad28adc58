package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"productreel/internal/infra"
	"productreel/migrations"
)

func main() {
	_ = godotenv.Load()

	steps := flag.Int("steps", 0, "number of migrations to apply (negative rolls back); 0 applies all for up and one for down")
	force := flag.Int("force", -1, "force the schema version, clearing the dirty flag")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [flags] <up|down|version>")
		flag.PrintDefaults()
	}
	flag.Parse()

	direction := strings.TrimSpace(flag.Arg(0))
	if direction == "" && *force < 0 {
		flag.Usage()
		os.Exit(2)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	m, closeFn, err := newMigrator(dbURL)
	if err != nil {
		exitWithError(err)
	}
	defer closeFn()

	if *force >= 0 {
		if err := m.Force(*force); err != nil {
			exitWithError(fmt.Errorf("force version %d: %w", *force, err))
		}
		logger.Info().Int("version", *force).Msg("schema version forced")
		return
	}

	switch direction {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		n := *steps
		if n <= 0 {
			n = 1
		}
		err = m.Steps(-n)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if verr != nil {
			exitWithError(fmt.Errorf("read version: %w", verr))
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return
	default:
		exitWithError(fmt.Errorf("unknown command %q (must be up, down or version)", direction))
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info().Str("direction", direction).Msg("no migrations to apply")
		return
	}
	if err != nil {
		exitWithError(fmt.Errorf("migrate %s: %w", direction, err))
	}
	logger.Info().Str("direction", direction).Msg("migrations applied")
}

func newMigrator(dbURL string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create postgres driver: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, func() { _, _ = m.Close() }, nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
