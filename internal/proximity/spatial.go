package proximity

import (
	"github.com/dhconnelly/rtreego"
	"github.com/rs/zerolog/log"

	"treeradius/internal/geo"
	"treeradius/internal/sftrees"
)

// treePointSize is the side length, in degrees, of the degenerate rect
// each tree occupies in the index. Roughly a tenth of a meter.
const treePointSize = 1e-6

type treeItem struct {
	rect *rtreego.Rect
	tree sftrees.Tree
}

func (t *treeItem) Bounds() rtreego.Rect {
	return *t.rect
}

// treesWithin indexes the trees in an R-tree, pulls the candidates
// inside a bounding box around the center, and keeps those whose exact
// haversine distance is <= radius. The box is padded so the prefilter
// can only over-cover, never drop a real match.
func treesWithin(center geo.Coordinate, radius float64, trees []sftrees.Tree) []Match {
	rt := rtreego.NewTree(2, 25, 50)
	for _, tree := range trees {
		point := rtreego.Point{tree.Coordinate.Lon, tree.Coordinate.Lat}
		rect, err := rtreego.NewRect(point, []float64{treePointSize, treePointSize})
		if err != nil {
			continue
		}
		rt.Insert(&treeItem{rect: &rect, tree: tree})
	}

	candidates := searchCandidates(rt, center, radius, trees)
	log.Debug().
		Int("trees", len(trees)).
		Int("candidates", len(candidates)).
		Msg("spatial prefilter applied")

	var matches []Match
	for _, item := range candidates {
		distance := geo.HaversineMeters(center, item.tree.Coordinate)
		log.Debug().
			Int64("tree_id", item.tree.ID).
			Float64("distance_m", distance).
			Msg("tree distance")
		if distance <= radius {
			matches = append(matches, Match{Tree: item.tree, DistanceMeters: distance})
		}
	}
	return matches
}

func searchCandidates(rt *rtreego.Rtree, center geo.Coordinate, radius float64, trees []sftrees.Tree) []*treeItem {
	dLat, dLon := geo.DegreeSpan(radius, center.Lat)
	// Pad the box: the degree conversion is planar while the distance
	// check is spherical, and trees sitting exactly on the boundary
	// must stay inside it.
	dLat = dLat*1.05 + treePointSize
	dLon = dLon*1.05 + treePointSize

	corner := rtreego.Point{center.Lon - dLon, center.Lat - dLat}
	searchRect, err := rtreego.NewRect(corner, []float64{2 * dLon, 2 * dLat})
	if err != nil {
		// Degenerate box; fall back to checking every tree.
		items := make([]*treeItem, 0, len(trees))
		for i := range trees {
			items = append(items, &treeItem{tree: trees[i]})
		}
		return items
	}

	found := rt.SearchIntersect(searchRect)
	items := make([]*treeItem, 0, len(found))
	for _, spatial := range found {
		items = append(items, spatial.(*treeItem))
	}
	return items
}
