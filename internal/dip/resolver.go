// Package dip implements the manual dip-reading ingestion path.
package dip

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/fuelgrid/tanksync/internal/cache"
	"github.com/fuelgrid/tanksync/internal/telemetry/domain"
	"github.com/fuelgrid/tanksync/pkg/repository"
	"gorm.io/gorm"
)

// ErrUnknownTank is returned when a tank name matches no asset.
var ErrUnknownTank = errors.New("unknown tank name")

// Names rarely change, so resolved IDs are safe to cache briefly.
const resolveTTL = 5 * time.Minute

// Resolver maps human-entered tank names onto assets. Matching is
// case-insensitive against the asset and device serial numbers.
type Resolver struct {
	db     *gorm.DB
	assets repository.Repository[domain.Asset]
	cache  *cache.TTLCache[string, snowflake.ID]
}

// NewResolver constructs a Resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{
		db:     db,
		assets: repository.ProvideStore[domain.Asset](db),
		cache:  cache.NewTTLCache[string, snowflake.ID](),
	}
}

// Resolve finds the asset a tank name refers to.
func (r *Resolver) Resolve(ctx context.Context, tankName string) (*domain.Asset, error) {
	name := strings.ToLower(strings.TrimSpace(tankName))
	if name == "" {
		return nil, ErrUnknownTank
	}

	if id, ok := r.cache.Get(name); ok {
		asset, err := r.assets.FindOne(ctx, &domain.Asset{ID: id})
		if err != nil {
			return nil, err
		}
		if asset != nil {
			return asset, nil
		}
		r.cache.Delete(name)
	}

	var asset domain.Asset
	err := r.db.WithContext(ctx).
		Where("LOWER(serial_number) = ? OR LOWER(device_serial_number) = ?", name, name).
		First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownTank
		}
		return nil, err
	}

	r.cache.Set(name, asset.ID, resolveTTL)
	return &asset, nil
}
