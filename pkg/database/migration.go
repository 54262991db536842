package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	pkgerrors "github.com/pkg/errors"
)

// MigrationLogger adapts ectologger to migrate.Logger
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return false
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	Version             uint
	Force               int
	AutoRollback        bool // force a dirty database back to the version it started at
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

var migrationFileRe = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

func (ms *MigrationService) resolveMigrationFolder() (string, error) {
	folder := ms.config.MigrationFolderPath
	if !filepath.IsAbs(folder) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		folder = filepath.Join(wd, folder)
	}
	if _, err := os.Stat(folder); err != nil {
		return "", pkgerrors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folder))
	}
	return folder, nil
}

// MigratePostgres applies the migration folder to a Postgres connection
func (ms *MigrationService) MigratePostgres(db *sql.DB, databaseName string) error {
	folder, err := ms.resolveMigrationFolder()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create postgres migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.run(m, folder)
}

func (ms *MigrationService) run(m *migrate.Migrate, folder string) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	previous, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Warn("Failed to get current migration version")
	}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	ms.logger.WithField("elapsed", time.Since(start)).Info("Database migrations finished")

	switch {
	case err == nil:
		ms.logger.Info("Successfully applied migrations")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	ms.logger.WithError(err).Error("Migration failed")

	version, dirty, verErr := m.Version()
	if verErr != nil || !dirty || !ms.config.AutoRollback {
		return err
	}

	target := int(previous)
	if target == 0 {
		latest, latestErr := LatestMigrationVersion(folder)
		if latestErr == nil && latest < int(version) {
			target = latest
		} else {
			target = int(version) - 1
		}
	}
	ms.logger.Warnf("Database is dirty at version %d. Forcing version %d", version, target)
	if forceErr := m.Force(target); forceErr != nil {
		ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", target)
	}

	// still fail so the service does not start on a half-migrated schema
	return err
}

// LatestMigrationVersion returns the highest up-migration version in a folder
func LatestMigrationVersion(folder string) (int, error) {
	files, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	latest := -1
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := migrationFileRe.FindStringSubmatch(file.Name())
		if len(matches) < 2 {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return 0, err
		}
		latest = max(latest, version)
	}

	if latest < 0 {
		return 0, fmt.Errorf("no migration files found in %s", folder)
	}
	return latest, nil
}
