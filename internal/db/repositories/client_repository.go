package repositories

import (
	"context"
	"errors"

	"fieldops/portal-sync/internal/models/gorm"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClientRepo handles clients table operations
type ClientRepo struct {
	db *gormlib.DB
}

func NewClientRepo(db *gormlib.DB) *ClientRepo {
	return &ClientRepo{db: db}
}

// Upsert inserts a client or updates the given columns of the existing row
// ON CONFLICT (uuid) DO UPDATE
func (r *ClientRepo) Upsert(ctx context.Context, client *gorm.Client, columns []string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns(withUpdatedAt(columns)),
		}).
		Create(client).Error
}

func (r *ClientRepo) FindByUUID(ctx context.Context, uuid string) (*gorm.Client, error) {
	var client gorm.Client
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&client).Error
	if errors.Is(err, gormlib.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ListUUIDs returns every known company uuid in insertion order
func (r *ClientRepo) ListUUIDs(ctx context.Context) ([]string, error) {
	var uuids []string
	err := r.db.WithContext(ctx).
		Model(&gorm.Client{}).
		Order("created_at ASC, uuid ASC").
		Pluck("uuid", &uuids).Error
	return uuids, err
}

func (r *ClientRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&gorm.Client{}).Count(&n).Error
	return n, err
}

// withUpdatedAt appends updated_at so every conflict refreshes the row timestamp
func withUpdatedAt(columns []string) []string {
	out := make([]string, 0, len(columns)+1)
	out = append(out, columns...)
	return append(out, "updated_at")
}
