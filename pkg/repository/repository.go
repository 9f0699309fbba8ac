// Package repository provides a small generic gorm store used by the
// domain services.
package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption customizes a Find query.
type QueryOption func(*gorm.DB) *gorm.DB

// WithLimit caps the number of rows returned.
func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if limit > 0 {
			return tx.Limit(limit)
		}
		return tx
	}
}

// WithOrder applies an ORDER BY expression.
func WithOrder(order string) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if order != "" {
			return tx.Order(order)
		}
		return tx
	}
}

// WithWhere adds an extra predicate.
func WithWhere(query string, args ...any) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(query, args...)
	}
}

// Repository is a typed store over one gorm model.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	Upsert(ctx context.Context, record *T, conflictColumns []string, updateColumns []string) error
	FindOne(ctx context.Context, filter *T) (*T, error)
	Find(ctx context.Context, filter *T, opts ...QueryOption) ([]*T, error)
	Count(ctx context.Context, filter *T) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore builds a Repository backed by the given connection.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) Create(ctx context.Context, record *T) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// Upsert inserts the record, updating updateColumns when a row with the
// same conflictColumns already exists.
func (s *store[T]) Upsert(ctx context.Context, record *T, conflictColumns []string, updateColumns []string) error {
	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, name := range conflictColumns {
		columns = append(columns, clause.Column{Name: name})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   columns,
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(record).Error
}

// FindOne returns the first row matching filter, or (nil, nil) when no row
// matches.
func (s *store[T]) FindOne(ctx context.Context, filter *T) (*T, error) {
	var record T
	err := s.db.WithContext(ctx).Where(filter).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *store[T]) Find(ctx context.Context, filter *T, opts ...QueryOption) ([]*T, error) {
	tx := s.db.WithContext(ctx).Where(filter)
	for _, opt := range opts {
		tx = opt(tx)
	}
	var records []*T
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *store[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var model T
	var count int64
	err := s.db.WithContext(ctx).Model(&model).Where(filter).Count(&count).Error
	return count, err
}
