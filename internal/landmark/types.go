package landmark

// Landmark is a single entry of the spatial index, matching
// original_source/backend/landmarks_db.py's schema.
type Landmark struct {
	ID       string
	Name     string
	Lat      float64
	Lon      float64
	RadiusM  float64
	Category string
}

const defaultRadiusM = 500

// Hit is the result of a Nearby lookup: a landmark, its distance from the
// query point, and whether this encounter should be notified per the
// 300-second per-landmark cooldown.
type Hit struct {
	Landmark  Landmark
	DistanceM float64
	Notify    bool
}

// Proximity is one entry of a NearbyWithin result: a landmark and its
// distance from the query point. Unlike Hit, it carries no notify flag
// and evaluating it has no effect on the notify cooldown — NearbyWithin
// is a read-only radius query, not an encounter.
type Proximity struct {
	Landmark  Landmark
	DistanceM float64
}

// priorityCategories is spec.md §4.D's static priority category set.
var priorityCategories = map[string]bool{
	"tourist_attraction":  true,
	"tourism":             true,
	"monument":            true,
	"museum":              true,
	"castle":              true,
	"viewpoint":           true,
	"attraction":          true,
	"trip_point":          true,
	"manual_waypoint":     true,
	"heritage":            true,
	"archaeological_site": true,
	"historic":            true,
}

// IsPriorityCategory reports whether category is in spec.md §4.D's static
// priority set.
func IsPriorityCategory(category string) bool {
	return priorityCategories[category]
}
