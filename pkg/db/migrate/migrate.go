package migrate

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mpapenbr/zenride/log"
)

//go:embed migrations
var migrations embed.FS

// MigrateDB applies the embedded migrations. dbURI uses the postgresql:// scheme.
func MigrateDB(dbURI string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source,
		strings.Replace(dbURI, "postgresql://", "pgx://", 1))
	if err != nil {
		return err
	}
	defer m.Close()

	l := log.Default().Named("db.migrate")
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			l.Info("No migration required")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	if version, dirty, err := m.Version(); err == nil {
		l.Info("database migrated", log.Uint("version", version), log.Bool("dirty", dirty))
	}
	return nil
}
