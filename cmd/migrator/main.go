package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"
)

const (
	storagePathFlag   = "storage-path"
	migrationPathFlag = "migrations-path"
	stepsFlag         = "steps"
)

func main() {
	storagePath, migrationsPath, steps := getFlagsValues()
	validateFlags(storagePath, migrationsPath)
	makeMigrations(storagePath, migrationsPath, steps)
}

type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger() *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default(),
		verbose: true,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

func getFlagsValues() (storage, migrations string, steps int) {
	storagePath := pflag.StringP(
		storagePathFlag, "s", "", "postgres dsn, the scheme is optional",
	)
	migrationsPath := pflag.StringP(
		migrationPathFlag, "m", "migrations", "migrations directory",
	)
	nSteps := pflag.IntP(
		stepsFlag, "n", 0, "apply n migrations, negative n rolls back, 0 applies all",
	)
	pflag.Parse()
	return *storagePath, *migrationsPath, *nSteps
}

func validateFlags(storagePath, migrationsPath string) {
	var errs []error

	if storagePath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", storagePathFlag))
	}

	if migrationsPath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", migrationPathFlag))
	}

	if len(errs) != 0 {
		slog.Error("too few args", "err", errors.Join(errs...))
		fallDown()
	}
}

func makeMigrations(storagePath, migrationsPath string, steps int) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		databaseURL(storagePath),
	)
	if err != nil {
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Error("failed to close", "err", errors.Join(srcErr, dbErr))
		}
	}()

	m.Log = NewMigrationLogger()

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return
		}
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		slog.Error("failed to read version", "err", err)
		fallDown()
	}
	slog.Info("migration applied", "version", version, "dirty", dirty)
}

// databaseURL points the dsn at the pgx v5 driver.
func databaseURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://", "pgx5://"} {
		dsn = strings.TrimPrefix(dsn, scheme)
	}
	return "pgx5://" + dsn
}

func fallDown() {
	os.Exit(2)
}
