// Package seed populates an empty repository with a demo storage hierarchy
// of facilities, fridges, racks and sample boxes.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
)

// Range is an inclusive integer interval.
type Range struct {
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`
}

// Bounds holds the size ranges of each level of the generated hierarchy.
// A zero Max on RacksPerFridge or BoxesPerRack means "up to the parent capacity".
type Bounds struct {
	Facilities     Range `mapstructure:"facilities" yaml:"facilities"`
	Fridges        Range `mapstructure:"fridges" yaml:"fridges"`
	FridgeRows     Range `mapstructure:"fridge_rows" yaml:"fridge_rows"`
	FridgeColumns  Range `mapstructure:"fridge_columns" yaml:"fridge_columns"`
	RacksPerFridge Range `mapstructure:"racks_per_fridge" yaml:"racks_per_fridge"`
	RackRows       Range `mapstructure:"rack_rows" yaml:"rack_rows"`
	RackColumns    Range `mapstructure:"rack_columns" yaml:"rack_columns"`
	BoxesPerRack   Range `mapstructure:"boxes_per_rack" yaml:"boxes_per_rack"`
	BoxRows        Range `mapstructure:"box_rows" yaml:"box_rows"`
	BoxColumns     Range `mapstructure:"box_columns" yaml:"box_columns"`
}

// DefaultBounds returns the demo data ranges.
func DefaultBounds() Bounds {
	return Bounds{
		Facilities:     Range{3, 8},
		Fridges:        Range{2, 5},
		FridgeRows:     Range{4, 8},
		FridgeColumns:  Range{4, 6},
		RacksPerFridge: Range{4, 0},
		RackRows:       Range{3, 4},
		RackColumns:    Range{2, 3},
		BoxesPerRack:   Range{2, 0},
		BoxRows:        Range{5, 10},
		BoxColumns:     Range{5, 10},
	}
}

// Config controls the generator. It is passed explicitly; there is no global switch.
type Config struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Deterministic bool   `mapstructure:"deterministic" yaml:"deterministic"`
	Seed          uint64 `mapstructure:"seed" yaml:"seed"`
	Bounds        Bounds `mapstructure:"bounds" yaml:"bounds"`
}

// DefaultConfig returns an enabled, deterministic configuration.
func DefaultConfig() Config {
	return Config{Enabled: true, Deterministic: true, Seed: 1, Bounds: DefaultBounds()}
}

// RandomBoundedCount returns min when deterministic, otherwise a uniform
// integer in [min, max]. A max below min yields min. A nil rng draws from
// the global source.
func RandomBoundedCount(rng *rand.Rand, min, max int, deterministic bool) int {
	if deterministic || max <= min {
		return min
	}
	if rng == nil {
		return min + rand.IntN(max-min+1)
	}
	return min + rng.IntN(max-min+1)
}

// Builder creates the items of the hierarchy. The storage service implements it
// so generated data goes through the same capacity and hierarchy checks as any
// other caller.
type Builder interface {
	CreateFacility(ctx context.Context, title string, info domain.FacilityInfo) (*domain.Item, error)
	CreateContainer(ctx context.Context, parentID string, kind domain.Kind, title string, rows, columns int) (*domain.Item, error)
	Facilities(ctx context.Context) ([]*domain.Item, error)
}

// Summary counts the generated items.
type Summary struct {
	Skipped    bool
	Facilities int
	Fridges    int
	Racks      int
	Boxes      int
}

// Generator builds demo data.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger
}

// Option configures the Generator.
type Option func(*Generator)

// WithLogger configures a logger for the Generator.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Generator.
func New(cfg Config, opts ...Option) *Generator {
	g := &Generator{
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) count(r Range, capacity int) int {
	hi := r.Max
	if hi == 0 {
		hi = capacity
	}
	n := RandomBoundedCount(g.rng, r.Min, hi, g.cfg.Deterministic)
	if capacity > 0 && n > capacity {
		n = capacity
	}
	return n
}

// Run generates the hierarchy unless a facility already exists.
func (g *Generator) Run(ctx context.Context, b Builder) (Summary, error) {
	var sum Summary
	existing, err := b.Facilities(ctx)
	if err != nil {
		return sum, err
	}
	if len(existing) > 0 {
		g.logger.Info("There are facilities created already [SKIP]", "count", len(existing))
		sum.Skipped = true
		return sum, nil
	}

	bounds := g.cfg.Bounds
	g.logger.Info("Creating test data ...", "deterministic", g.cfg.Deterministic)

	for x := range g.count(bounds.Facilities, 0) {
		facility, err := b.CreateFacility(ctx, fmt.Sprintf("Storage facility %02d", x+1), demoFacilityInfo(x+1))
		if err != nil {
			return sum, err
		}
		sum.Facilities++

		for i := range g.count(bounds.Fridges, 0) {
			fridge, err := b.CreateContainer(ctx, facility.ID, domain.KindContainer, fmt.Sprintf("Fridge %02d", i+1),
				g.count(bounds.FridgeRows, 0), g.count(bounds.FridgeColumns, 0))
			if err != nil {
				return sum, err
			}
			sum.Fridges++

			for j := range g.count(bounds.RacksPerFridge, fridge.Capacity()) {
				rack, err := b.CreateContainer(ctx, fridge.ID, domain.KindContainer, fmt.Sprintf("Rack %02d", j+1),
					g.count(bounds.RackRows, 0), g.count(bounds.RackColumns, 0))
				if err != nil {
					return sum, err
				}
				sum.Racks++

				for k := range g.count(bounds.BoxesPerRack, rack.Capacity()) {
					_, err := b.CreateContainer(ctx, rack.ID, domain.KindSamplesContainer, fmt.Sprintf("Sample box %02d", k+1),
						g.count(bounds.BoxRows, 0), g.count(bounds.BoxColumns, 0))
					if err != nil {
						return sum, err
					}
					sum.Boxes++
				}
			}
		}
	}

	g.logger.Info("Test data created", "facilities", sum.Facilities, "fridges", sum.Fridges, "racks", sum.Racks, "boxes", sum.Boxes)
	return sum, nil
}

func demoFacilityInfo(n int) domain.FacilityInfo {
	return domain.FacilityInfo{
		Phone: "123456789",
		Email: fmt.Sprintf("storage%02d@example.com", n),
		Address: domain.Address{
			Street:  "Av. Via Augusta 15 - 25",
			City:    "Sant Cugat del Valles",
			Zip:     "08174",
			Country: "Spain",
		},
	}
}
