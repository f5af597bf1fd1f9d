package cache

import (
	"context"

	"AShareLens/internal/model"
)

// Store is a read-through cache of downloaded bars.
type Store interface {
	// LoadBars returns cached bars covering req. ok is false on a miss.
	LoadBars(ctx context.Context, req model.BarRequest) (series *model.PriceSeries, ok bool, err error)
	// SaveBars replaces the cached bars for req's symbol, period and adjustment.
	SaveBars(ctx context.Context, req model.BarRequest, series *model.PriceSeries) error
	Close() error
}

// NoopStore is used when SQLite is not configured.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) LoadBars(context.Context, model.BarRequest) (*model.PriceSeries, bool, error) {
	return nil, false, nil
}
func (n *NoopStore) SaveBars(context.Context, model.BarRequest, *model.PriceSeries) error { return nil }
func (n *NoopStore) Close() error                                                         { return nil }
