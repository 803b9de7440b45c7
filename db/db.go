package db

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/KAsare1/slotbook-server/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPSQLStorage(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

type table struct {
	name  string
	model interface{}
}

// tables is in dependency order; clearing walks it backwards.
var tables = []table{
	{"Host", &models.Host{}},
	{"AvailabilitySchedule", &models.AvailabilitySchedule{}},
	{"WeeklyRule", &models.WeeklyRule{}},
	{"DateOverride", &models.DateOverride{}},
	{"EventType", &models.EventType{}},
	{"Question", &models.Question{}},
	{"Booking", &models.Booking{}},
}

// Partial indexes gorm tags cannot express.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_schedules_one_default
		ON availability_schedules (host_id) WHERE is_default AND deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_event_types_host_slug
		ON event_types (host_id, slug) WHERE deleted_at IS NULL`,
}

func Migrate(db *gorm.DB, log *slog.Logger) error {
	log.Info("starting database migrations")
	for _, t := range tables {
		log.Debug("migrating table", "table", t.name)
		if err := db.AutoMigrate(t.model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", t.name, err)
		}
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	log.Info("migrations completed", "tables", len(tables))
	return nil
}

// Clear drops the named tables, or every table when names is empty.
func Clear(db *gorm.DB, log *slog.Logger, names []string) error {
	selected := make([]table, 0, len(tables))
	if len(names) == 0 {
		selected = append(selected, tables...)
	} else {
		for _, name := range names {
			t, ok := lookup(strings.TrimSpace(name))
			if !ok {
				return fmt.Errorf("unknown table %q", name)
			}
			selected = append(selected, t)
		}
	}

	for i := len(selected) - 1; i >= 0; i-- {
		t := selected[i]
		if err := db.Migrator().DropTable(t.model); err != nil {
			log.Warn("dropping table failed", "table", t.name, "error", err)
			continue
		}
		log.Info("table dropped", "table", t.name)
	}
	return nil
}

func TableNames() []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.name
	}
	return names
}

func lookup(name string) (table, bool) {
	for _, t := range tables {
		if strings.EqualFold(t.name, name) {
			return t, true
		}
	}
	return table{}, false
}
