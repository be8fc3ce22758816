package stats

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/piemonte-health/callbridge/internal/logging"
)

// ApplyMigrations runs the migrations/ directory's schema migrations
// against dsn, grounded on LumenPrima-tr-engine's migration-on-boot
// pattern but using golang-migrate directly rather than hand-rolled
// idempotent-ALTER checks, since this repo owns its schema outright
// (LumenPrima only ever patches a schema it does not own).
func ApplyMigrations(dsn, migrationsPath string, log *logging.Logger) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dsn)
	if err != nil {
		return fmt.Errorf("stats: open migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("stats: apply migrations: %w", err)
	}
	log.Infow("tb_stat schema migrations applied")
	return nil
}
