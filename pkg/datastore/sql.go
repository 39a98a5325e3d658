package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catto/models/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// document is the single table every entity kind is stored in. Kind holds
// the logical table name and Data the JSON encoded row.
type document struct {
	Kind      string `gorm:"primaryKey;size:64"`
	ID        string `gorm:"primaryKey;size:128"`
	Data      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name regardless of gorm naming strategy.
func (document) TableName() string {
	return "documents"
}

// Compile-time interface check.
var _ Datastore = (*sqlStore)(nil)

type sqlStore struct {
	log logrus.FieldLogger
	cfg *config.DatastoreConfig
	db  *gorm.DB
}

// NewSQL creates a Datastore backed by the configured gorm driver
// (sqlite or postgres).
func NewSQL(log logrus.FieldLogger, cfg *config.DatastoreConfig) Datastore {
	return &sqlStore{
		log: log.WithField("component", "datastore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *sqlStore) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&document{}); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Datastore connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *sqlStore) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

func (s *sqlStore) Get(ctx context.Context, q GetQuery) (Row, error) {
	var doc document
	if err := s.db.WithContext(ctx).
		Where("kind = ? AND id = ?", q.Table, q.ID).
		Take(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("getting %s row: %w", q.Table, err)
	}

	row, err := decodeRow([]byte(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s row %s: %w", q.Table, q.ID, err)
	}

	return row, nil
}

func (s *sqlStore) Scan(ctx context.Context, q ScanQuery) ([]Row, error) {
	var docs []document
	if err := s.db.WithContext(ctx).
		Where("kind = ?", q.Table).
		Order("created_at ASC, id ASC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("scanning %s: %w", q.Table, err)
	}

	rows := make([]Row, 0, len(docs))

	for _, doc := range docs {
		row, err := decodeRow([]byte(doc.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding %s row %s: %w", q.Table, doc.ID, err)
		}

		if matches(row, q.Params) {
			rows = append(rows, row)
		}
	}

	return paginate(rows, q.Paginate), nil
}

func (s *sqlStore) Update(ctx context.Context, q UpdateQuery) (Row, error) {
	var updated Row

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc document
		if err := tx.Where("kind = ? AND id = ?", q.Table, q.ID).
			Take(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}

			return fmt.Errorf("loading %s row: %w", q.Table, err)
		}

		row, err := decodeRow([]byte(doc.Data))
		if err != nil {
			return fmt.Errorf("decoding %s row %s: %w", q.Table, q.ID, err)
		}

		data, err := encodeRow(q.ID, merge(row, q.Data))
		if err != nil {
			return fmt.Errorf("encoding %s row %s: %w", q.Table, q.ID, err)
		}

		doc.Data = string(data)
		if err := tx.Save(&doc).Error; err != nil {
			return fmt.Errorf("updating %s row: %w", q.Table, err)
		}

		updated, err = decodeRow(data)

		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *sqlStore) Create(ctx context.Context, q CreateQuery) (Row, error) {
	data, err := encodeRow(q.ID, q.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s row %s: %w", q.Table, q.ID, err)
	}

	doc := &document{Kind: q.Table, ID: q.ID, Data: string(data)}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, fmt.Errorf("creating %s row: %w", q.Table, err)
	}

	return decodeRow(data)
}
