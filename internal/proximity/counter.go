package proximity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"treeradius/internal/geo"
	"treeradius/internal/geocode"
	"treeradius/internal/sftrees"
)

// Counter runs the full search: resolve the address, fetch the tree
// list, and count the trees within the block radius.
type Counter struct {
	Resolver    geocode.Resolver
	Trees       sftrees.Source
	BlockLength float64
}

// Match is a tree inside the radius, with its distance from the center.
type Match struct {
	Tree           sftrees.Tree
	DistanceMeters float64
}

// Result is the outcome of one search run.
type Result struct {
	Center       geo.Coordinate
	RadiusMeters float64
	Matches      []Match
	TotalTrees   int
	SkippedRows  int
}

// InputError means the search was asked for something nonsensical
// before any network call was made.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// Run resolves the address once, fetches the dataset once, and filters
// trees by distance. The boundary is inclusive: a tree at exactly the
// radius counts.
func (c *Counter) Run(ctx context.Context, address string, blocks int) (*Result, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &InputError{Reason: "address must not be empty"}
	}
	if blocks < 0 {
		return nil, &InputError{Reason: fmt.Sprintf("blocks must be >= 0, got %d", blocks)}
	}
	if c.BlockLength <= 0 {
		return nil, &InputError{Reason: fmt.Sprintf("block length must be positive, got %g", c.BlockLength)}
	}

	center, err := c.Resolver.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	radius := geo.BlocksToMeters(blocks, c.BlockLength)
	log.Debug().
		Float64("lat", center.Lat).
		Float64("lon", center.Lon).
		Float64("radius_m", radius).
		Msg("search center resolved")

	fetched, err := c.Trees.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := treesWithin(center, radius, fetched.Trees)
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})

	return &Result{
		Center:       center,
		RadiusMeters: radius,
		Matches:      matches,
		TotalTrees:   len(fetched.Trees),
		SkippedRows:  fetched.SkippedRows,
	}, nil
}
