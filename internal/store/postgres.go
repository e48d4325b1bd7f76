package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// documentRow is the gorm model behind the Postgres backend.
type documentRow struct {
	Collection string    `gorm:"primaryKey;size:64"`
	ID         int64     `gorm:"primaryKey;autoIncrement:false"`
	Data       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (documentRow) TableName() string { return "documents" }

type sequenceRow struct {
	Collection string `gorm:"primaryKey;size:64"`
	Last       int64  `gorm:"not null"`
}

func (sequenceRow) TableName() string { return "sequences" }

// Postgres is a Backend on a PostgreSQL database, accessed through gorm.
type Postgres struct {
	db *gorm.DB
	mu sync.Mutex
}

// OpenPostgres connects with dsn and migrates the schema.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&documentRow{}, &sequenceRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	var rows []documentRow
	if err := p.db.WithContext(ctx).Where("collection = ?", collection).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = Document{ID: r.ID, Data: []byte(r.Data)}
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, collection string, id int64) (Document, error) {
	var row documentRow
	err := p.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return Document{ID: row.ID, Data: []byte(row.Data)}, nil
}

func (p *Postgres) Insert(ctx context.Context, collection string, data []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var id int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if id, err = pgNextID(tx, collection, 0); err != nil {
			return err
		}
		return tx.Create(&documentRow{Collection: collection, ID: id, Data: string(data)}).Error
	})
	return id, err
}

func (p *Postgres) Update(ctx context.Context, collection string, id int64, data []byte) error {
	res := p.db.WithContext(ctx).Model(&documentRow{}).
		Where("collection = ? AND id = ?", collection, id).
		Update("data", string(data))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection string, id int64) error {
	res := p.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).Delete(&documentRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Replace(ctx context.Context, collection string, docs []Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ?", collection).Delete(&documentRow{}).Error; err != nil {
			return err
		}
		var floor int64
		for _, d := range docs {
			floor = max(floor, d.ID)
		}
		rows := make([]documentRow, 0, len(docs))
		for _, d := range docs {
			id := d.ID
			if id <= 0 {
				var err error
				if id, err = pgNextID(tx, collection, floor); err != nil {
					return err
				}
			}
			rows = append(rows, documentRow{Collection: collection, ID: id, Data: string(d.Data)})
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 200).Error; err != nil {
				return err
			}
		}
		if floor == 0 {
			return nil
		}
		_, err := pgNextID(tx, collection, floor-1)
		return err
	})
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// pgNextID bumps and returns the collection sequence, never going below floor+1.
func pgNextID(tx *gorm.DB, collection string, floor int64) (int64, error) {
	var seq sequenceRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("collection = ?", collection).First(&seq).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	next := max(seq.Last, floor) + 1
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}},
		DoUpdates: clause.AssignmentColumns([]string{"last"}),
	}).Create(&sequenceRow{Collection: collection, Last: next}).Error
	return next, err
}
