package database

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookkeeper/internal/config"
	"github.com/mrlokans/bookkeeper/internal/database/books"
	"github.com/mrlokans/bookkeeper/internal/entities"
)

// SchemaVersion is bumped whenever the persisted tables change shape.
const SchemaVersion = 4

var ErrUnknownSchemaPolicy = errors.New("unknown schema policy")

// Tables lists every model owned by the shelf database, in creation order.
var Tables = []any{
	&entities.User{},
	&entities.Book{},
	&entities.Setting{},
}

type Database struct {
	DB *gorm.DB
}

type Options struct {
	SchemaPolicy string
	LogLevel     logger.LogLevel
}

func NewDatabase(dbPath string) (*Database, error) {
	return Open(dbPath, Options{SchemaPolicy: config.SchemaPolicyMigrate})
}

func Open(dbPath string, opts Options) (*Database, error) {
	if opts.SchemaPolicy == "" {
		opts.SchemaPolicy = config.SchemaPolicyMigrate
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=1&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	database := &Database{DB: db}
	if err := database.applySchema(opts.SchemaPolicy); err != nil {
		_ = database.Close()
		return nil, err
	}

	log.Printf("Database initialized successfully at %s (schema v%d, policy %s)", dbPath, SchemaVersion, opts.SchemaPolicy)

	return database, nil
}

func (d *Database) applySchema(policy string) error {
	switch policy {
	case config.SchemaPolicyMigrate, config.SchemaPolicyDestructive:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSchemaPolicy, policy)
	}

	stored, found := d.storedSchemaVersion()
	if policy == config.SchemaPolicyDestructive && found && stored != SchemaVersion {
		log.Printf("Schema version changed from %d to %d: discarding all local data", stored, SchemaVersion)
		if err := d.DB.Migrator().DropTable(Tables...); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}

	if err := d.DB.AutoMigrate(Tables...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	filled, err := books.NewRepository(d.DB).BackfillTitleKeys()
	if err != nil {
		return fmt.Errorf("failed to backfill title keys: %w", err)
	}
	if filled > 0 {
		log.Printf("Backfilled title keys for %d books", filled)
	}

	return d.SetSetting(entities.SettingKeySchemaVersion, strconv.Itoa(SchemaVersion))
}

// storedSchemaVersion reads the version recorded by the previous run, if any.
func (d *Database) storedSchemaVersion() (int, bool) {
	if !d.DB.Migrator().HasTable(&entities.Setting{}) {
		return 0, false
	}
	setting, err := d.GetSetting(entities.SettingKeySchemaVersion)
	if err != nil {
		return 0, false
	}
	version, err := strconv.Atoi(setting.Value)
	if err != nil {
		return 0, false
	}
	return version, true
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the underlying connection.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (d *Database) GetSetting(key string) (*entities.Setting, error) {
	var setting entities.Setting
	err := d.DB.Where("key = ?", key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (d *Database) SetSetting(key, value string) error {
	var setting entities.Setting
	result := d.DB.Where("key = ?", key).First(&setting)

	if result.Error == gorm.ErrRecordNotFound {
		setting = entities.Setting{
			Key:   key,
			Value: value,
		}
		return d.DB.Create(&setting).Error
	} else if result.Error != nil {
		return result.Error
	}

	setting.Value = value
	return d.DB.Save(&setting).Error
}
