package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// row is one ledger record as stored.
type row struct {
	SessionID string `gorm:"primaryKey;size:128"`
	ContentID string `gorm:"not null"`
	Owner     string `gorm:"index;not null"`
	TxRef     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (row) TableName() string { return "ledger_records" }

// Postgres is the server-side ledger. Unlike the client-facing Ledger
// contract, writes take the owner explicitly; the HTTP layer resolves it
// from the caller's credential.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, &LedgerError{Op: "migrate", Err: err}
	}
	return &Postgres{db: db}, nil
}

// Upsert creates the session's record, or updates it when the caller is the
// recorded owner. A later write simply overwrites the content id; there is
// no merge.
func (p *Postgres) Upsert(ctx context.Context, sessionID, contentID, owner string) (Result, error) {
	txRef := ulid.Make().String()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing row
		err := tx.Where("session_id = ?", sessionID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&row{
				SessionID: sessionID,
				ContentID: contentID,
				Owner:     owner,
				TxRef:     txRef,
			}).Error
		case err != nil:
			return err
		}
		if existing.Owner != owner {
			return errors.New("not the record owner")
		}
		return tx.Model(&row{}).Where("session_id = ?", sessionID).
			Updates(map[string]any{"content_id": contentID, "tx_ref": txRef}).Error
	})
	if err != nil {
		return Result{}, &LedgerError{Op: "upsert", Err: err}
	}
	return Result{Success: true, TxRef: txRef}, nil
}

func (p *Postgres) Get(ctx context.Context, sessionID string) (*Record, error) {
	var r row
	err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &LedgerError{Op: "get", Err: err}
	}
	rec := recordOf(r)
	return &rec, nil
}

func (p *Postgres) ListByOwner(ctx context.Context, owner string) ([]Entry, error) {
	var rows []row
	if err := p.db.WithContext(ctx).Where("owner = ?", owner).Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, &LedgerError{Op: "list", Err: err}
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{SessionID: r.SessionID, Record: recordOf(r)})
	}
	return entries, nil
}

func recordOf(r row) Record {
	return Record{
		ContentID: r.ContentID,
		Owner:     r.Owner,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
