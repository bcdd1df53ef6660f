package feed

import (
	"sort"
	"strings"

	"backend-localpulse/internal/geo"
	"backend-localpulse/internal/post"
)

type SortMode string

const (
	SortNewest    SortMode = "newest"
	SortOldest    SortMode = "oldest"
	SortPopular   SortMode = "popular"
	SortProximity SortMode = "proximity"
)

// ParseSortMode maps a query value onto a sort mode, defaulting to newest.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortOldest, SortPopular, SortProximity:
		return SortMode(s)
	default:
		return SortNewest
	}
}

// FilterState is a viewer's ephemeral filter selection. Radius is consumed at
// fetch time only; Compose never re-filters by distance.
type FilterState struct {
	SearchText string
	Categories []string
	Radius     geo.Radius
	Sort       SortMode
}

// Compose applies the text filter, the category filter and the sort to a
// fetched snapshot, in that order. It is a pure function: the input slice is
// never mutated, and identical inputs produce identical output.
func Compose(posts []post.Post, state FilterState, viewer *geo.Coordinate) []post.Post {
	out := make([]post.Post, len(posts))
	copy(out, posts)

	out = filterText(out, state.SearchText)
	out = filterCategories(out, state.Categories)
	sortPosts(out, state.Sort, viewer)
	return out
}

func filterText(posts []post.Post, search string) []post.Post {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return posts
	}
	kept := posts[:0]
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), search) ||
			strings.Contains(strings.ToLower(p.Content), search) ||
			strings.Contains(strings.ToLower(p.LocationName), search) ||
			strings.Contains(strings.ToLower(p.Category), search) {
			kept = append(kept, p)
		}
	}
	return kept
}

// An empty selection means "no constraint", not "none match".
func filterCategories(posts []post.Post, categories []string) []post.Post {
	if len(categories) == 0 {
		return posts
	}
	selected := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		selected[c] = struct{}{}
	}
	kept := posts[:0]
	for _, p := range posts {
		if _, ok := selected[p.Category]; ok {
			kept = append(kept, p)
		}
	}
	return kept
}

func sortPosts(posts []post.Post, mode SortMode, viewer *geo.Coordinate) {
	if mode == SortProximity && (viewer == nil || !viewer.Valid()) {
		mode = SortNewest
	}

	switch mode {
	case SortOldest:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		})
	case SortPopular:
		sort.SliceStable(posts, func(i, j int) bool {
			if posts[i].Score() != posts[j].Score() {
				return posts[i].Score() > posts[j].Score()
			}
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		})
	case SortProximity:
		distances := make([]float64, len(posts))
		for i, p := range posts {
			distances[i] = distanceOrInf(*viewer, p)
		}
		indexed := make([]int, len(posts))
		for i := range indexed {
			indexed[i] = i
		}
		sort.SliceStable(indexed, func(i, j int) bool {
			return distances[indexed[i]] < distances[indexed[j]]
		})
		reorder(posts, indexed)
	default:
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		})
	}
}

// Posts without a usable location sort last, not out.
func distanceOrInf(viewer geo.Coordinate, p post.Post) float64 {
	if p.Location == nil || !p.Location.Valid() {
		return maxDistance
	}
	return geo.HaversineKm(viewer, *p.Location)
}

// Larger than any great-circle distance on earth.
const maxDistance = 1 << 20

func reorder(posts []post.Post, order []int) {
	tmp := make([]post.Post, len(posts))
	for i, idx := range order {
		tmp[i] = posts[idx]
	}
	copy(posts, tmp)
}
