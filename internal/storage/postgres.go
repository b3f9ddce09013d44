package storage

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
)

// Document is one stored content blob. The row id doubles as the content id
// handed back to clients.
type Document struct {
	ID        uint   `gorm:"primaryKey"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"`
}

// Postgres is the server-side Store backed by a documents table.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Store(ctx context.Context, content string) (StoreResult, error) {
	doc := Document{Content: content}
	if err := p.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return StoreResult{}, &StorageError{Op: "store", Err: err}
	}
	return StoreResult{ID: strconv.FormatUint(uint64(doc.ID), 10), Size: len(content)}, nil
}

func (p *Postgres) Fetch(ctx context.Context, id string) (string, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return "", &StorageError{Op: "fetch", Err: ErrNotFound}
	}
	var doc Document
	if err := p.db.WithContext(ctx).First(&doc, n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &StorageError{Op: "fetch", Err: ErrNotFound}
		}
		return "", &StorageError{Op: "fetch", Err: err}
	}
	return doc.Content, nil
}
