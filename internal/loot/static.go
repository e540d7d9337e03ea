package loot

import (
	"context"
	"strings"

	"github.com/exiletools/runtracker/internal/storage"
)

// StaticPricer is the built-in fallback pricing collaborator: a fixed
// chaos-denominated table for the currency that dominates run value,
// vendor-tier for everything it does not know. The real rule engine
// replaces it when the host wires one in.
type StaticPricer struct {
	values map[string]float64
}

func NewStaticPricer() *StaticPricer {
	return &StaticPricer{values: map[string]float64{
		"Chaos Orb":              1,
		"Orb of Alchemy":         0.5,
		"Orb of Fusing":          0.5,
		"Vaal Orb":               1,
		"Regal Orb":              0.3,
		"Gemcutter's Prism":      1.5,
		"Orb of Annulment":       5,
		"Exalted Orb":            90,
		"Divine Orb":             220,
		"Mirror of Kalandra":     90000,
		"Awakener's Orb":         60,
		"Crusader's Exalted Orb": 25,
		"Redeemer's Exalted Orb": 20,
		"Hunter's Exalted Orb":   40,
		"Warlord's Exalted Orb":  18,
		"Sacred Orb":             35,
		"Veiled Chaos Orb":       4,
	}}
}

func (p *StaticPricer) Price(_ context.Context, item storage.Item) (Price, error) {
	if v, ok := p.values[item.Name]; ok {
		return Price{Value: v}, nil
	}
	// Stacked currency shows the base name in the type line.
	if v, ok := p.values[item.TypeLine]; ok {
		return Price{Value: v}, nil
	}
	if strings.EqualFold(item.Rarity, "unique") {
		return Price{Value: 1}, nil
	}
	return Price{IsVendor: true}, nil
}
