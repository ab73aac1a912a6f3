package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

type kvItem struct {
	bun.BaseModel `bun:"table:secure_items,alias:kvi"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BunBackend persists credential material in a bun-managed table. It is the
// fallback tier for platforms without an OS keychain; callers wanting
// at-rest protection should point it at an encrypted database file.
type BunBackend struct {
	db *bun.DB
}

var _ Backend = (*BunBackend)(nil)

// NewBunBackend creates a database-backed Backend.
func NewBunBackend(db *bun.DB) *BunBackend {
	return &BunBackend{db: db}
}

// Init creates the backing table if it does not exist.
func (b *BunBackend) Init(ctx context.Context) error {
	_, err := b.db.NewCreateTable().
		Model((*kvItem)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (b *BunBackend) GetItem(ctx context.Context, key string) (string, error) {
	item := &kvItem{}
	err := b.db.NewSelect().
		Model(item).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errNotFound
		}
		return "", err
	}

	return item.Value, nil
}

func (b *BunBackend) SetItem(ctx context.Context, key, value string) error {
	item := &kvItem{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	_, err := b.db.NewInsert().
		Model(item).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

func (b *BunBackend) RemoveItem(ctx context.Context, key string) error {
	_, err := b.db.NewDelete().
		Model((*kvItem)(nil)).
		Where("?TableAlias.key = ?", key).
		Exec(ctx)
	return err
}
