// Package seed generates synthetic entities and change history for
// demos and benchmarks. It is a convenience utility outside the core:
// nothing in the stores depends on it.
package seed

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/cairnstack/cairn/entity"
	"github.com/cairnstack/cairn/errors"
	"github.com/cairnstack/cairn/store"
)

var sampleNames = []string{
	"epoxy adhesive", "marine sealant", "polyurethane foam",
	"installation guide", "safety datasheet", "warranty terms",
	"primer coat", "surface cleaner", "curing schedule",
}

var sampleKeywords = []string{
	"adhesive", "sealant", "marine", "industrial", "coating",
	"bonding", "waterproof", "structural",
}

// Run inserts count synthetic entities, then applies extra
// modifications to a random subset so version history accumulates.
func Run(ctx context.Context, s *store.Store, count int, rng *rand.Rand) error {
	if count <= 0 {
		return errors.Wrap(errors.ErrValidation, "seed count must be positive")
	}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name := sampleNames[rng.Intn(len(sampleNames))]
		e := &entity.Entity{
			ID:      fmt.Sprintf("seed-%04d", i),
			Type:    pickType(rng),
			Name:    fmt.Sprintf("%s #%d", name, i),
			Content: fmt.Sprintf("Synthetic record for %s, batch item %d.", name, i),
			Metadata: entity.Metadata{
				Keywords: pickKeywords(rng),
				Category: "synthetic",
			},
		}
		if _, err := s.Upsert(ctx, e); err != nil {
			return errors.Wrapf(err, "seed entity %s", e.ID)
		}
		ids = append(ids, e.ID)
	}

	// Revisit a third of the set so some entities carry history.
	for i := 0; i < count/3; i++ {
		id := ids[rng.Intn(len(ids))]
		e, err := s.Get(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "reload seed entity %s", id)
		}
		e.Content += " Revised."
		if _, err := s.Upsert(ctx, e); err != nil {
			return errors.Wrapf(err, "revise seed entity %s", id)
		}
	}

	return nil
}

func pickType(rng *rand.Rand) entity.Type {
	switch rng.Intn(3) {
	case 0:
		return entity.TypeProduct
	case 1:
		return entity.TypeDocument
	default:
		return entity.TypeOther
	}
}

func pickKeywords(rng *rand.Rand) []string {
	n := 1 + rng.Intn(3)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sampleKeywords[rng.Intn(len(sampleKeywords))])
	}
	return out
}
