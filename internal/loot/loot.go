// Package loot attributes drops to the zone they fell in and prices
// them through the external pricing collaborator.
package loot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/exiletools/runtracker/internal/area"
	"github.com/exiletools/runtracker/internal/event"
	"github.com/exiletools/runtracker/internal/storage"
)

// Price is the pricing collaborator's answer for one item.
type Price struct {
	Value    float64
	IsVendor bool
}

// Pricer is the external item-pricing rule engine. The core only asks
// for a number.
type Pricer interface {
	Price(ctx context.Context, item storage.Item) (Price, error)
}

// ErrInventoryLag is returned when the inventory-diff collaborator has
// not caught up to the run's end timestamp within the bounded wait. The
// caller degrades the run's item value rather than failing the run.
var ErrInventoryLag = errors.New("loot: inventory diff has not reached run end")

// Valuer computes per-run loot value.
type Valuer struct {
	logger *slog.Logger
	store  storage.Store
	pricer Pricer

	// Fixed-interval bounded wait for the async inventory diff.
	waitInterval time.Duration
	maxWaits     int
}

func NewValuer(logger *slog.Logger, store storage.Store, pricer Pricer) *Valuer {
	return &Valuer{
		logger:       logger,
		store:        store,
		pricer:       pricer,
		waitInterval: time.Second,
		maxWaits:     5,
	}
}

// zone is a maximal span of events bounded by consecutive entered
// events. Derived during valuation only, never persisted.
type zone struct {
	name string
	from time.Time
	to   time.Time
}

// Value waits for the inventory diff to reach lastEvent, then walks the
// run's zones and sums the value of non-vendor drops, skipping equipped
// items and anything picked up in town.
func (v *Valuer) Value(ctx context.Context, events []storage.StoredEvent, firstEvent, lastEvent time.Time) (float64, error) {
	if err := v.waitForInventory(ctx, lastEvent); err != nil {
		return 0, err
	}

	items, err := v.store.ItemsBetween(ctx, firstEvent, lastEvent)
	if err != nil {
		return 0, fmt.Errorf("load run items: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	zones := buildZones(events, lastEvent)

	var total float64
	for _, it := range items {
		if it.Equipped {
			continue
		}
		z := zoneAt(zones, it.Timestamp)
		if z != nil && area.IsTown(z.name) {
			continue
		}
		p, err := v.pricer.Price(ctx, it)
		if err != nil {
			// One unpriceable item never voids the run total.
			v.logger.Warn("pricing failed", "item", it.Name, "error", err)
			continue
		}
		if p.IsVendor {
			continue
		}
		total += p.Value * float64(max(it.StackSize, 1))
	}
	return total, nil
}

func (v *Valuer) waitForInventory(ctx context.Context, lastEvent time.Time) error {
	for attempt := 0; ; attempt++ {
		latest, err := v.store.LatestItemTimestamp(ctx)
		if err != nil {
			return fmt.Errorf("latest item timestamp: %w", err)
		}
		if !latest.Before(lastEvent) {
			return nil
		}
		if attempt >= v.maxWaits {
			return ErrInventoryLag
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(v.waitInterval):
		}
	}
}

// buildZones derives the zone spans from the run's entered events.
func buildZones(events []storage.StoredEvent, lastEvent time.Time) []zone {
	var zones []zone
	for _, ev := range events {
		if ev.Type != event.TypeEntered {
			continue
		}
		if n := len(zones); n > 0 {
			zones[n-1].to = ev.Timestamp
		}
		zones = append(zones, zone{name: ev.Text, from: ev.Timestamp, to: lastEvent})
	}
	return zones
}

func zoneAt(zones []zone, ts time.Time) *zone {
	for i := range zones {
		if !ts.Before(zones[i].from) && !ts.After(zones[i].to) {
			return &zones[i]
		}
	}
	return nil
}
