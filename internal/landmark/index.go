package landmark

import (
	"math"
	"sort"
	"sync"
	"time"
)

// notifyCooldown is spec.md §4.D's "at most one notification per landmark
// per 5 minutes per process" window.
const notifyCooldown = 300 * time.Second

// Index is the read-only in-memory spatial index, loaded once via
// LoadJSON/LoadSQLite and queried concurrently thereafter. The notify
// cooldown map is its only mutable state.
type Index struct {
	landmarks []Landmark

	mu           sync.Mutex
	lastNotified map[string]time.Time
	now          func() time.Time
}

// New builds an Index over landmarks, defaulting any zero RadiusM to 500m
// per original_source/backend/landmarks_db.py's column default.
func New(landmarks []Landmark) *Index {
	normalized := make([]Landmark, len(landmarks))
	for i, l := range landmarks {
		if l.RadiusM <= 0 {
			l.RadiusM = defaultRadiusM
		}
		normalized[i] = l
	}
	return &Index{
		landmarks:    normalized,
		lastNotified: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Nearby returns the closest landmark whose Haversine distance from
// (lat, lon) is within its own RadiusM, tie-broken by smaller id. Returns
// nil if no landmark qualifies.
func (idx *Index) Nearby(lat, lon float64) *Hit {
	var best *Landmark
	var bestDist float64

	for i := range idx.landmarks {
		l := idx.landmarks[i]
		dist := haversineMeters(lat, lon, l.Lat, l.Lon)
		if dist > l.RadiusM {
			continue
		}
		if best == nil || dist < bestDist || (dist == bestDist && l.ID < best.ID) {
			lCopy := l
			best = &lCopy
			bestDist = dist
		}
	}
	if best == nil {
		return nil
	}
	return idx.makeHit(*best, bestDist)
}

// NearbyWithin returns every landmark within radiusKm of (lat, lon),
// sorted ascending by distance, regardless of each landmark's own
// RadiusM. It is a read-only query: it does not consult or update the
// notify cooldown.
func (idx *Index) NearbyWithin(lat, lon, radiusKm float64) []Proximity {
	radiusM := radiusKm * 1000
	var hits []Proximity

	for i := range idx.landmarks {
		l := idx.landmarks[i]
		dist := haversineMeters(lat, lon, l.Lat, l.Lon)
		if dist > radiusM {
			continue
		}
		hits = append(hits, Proximity{Landmark: l, DistanceM: dist})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceM < hits[j].DistanceM })
	return hits
}

// ShouldNotify evaluates and updates the 300-second per-landmark notify
// cooldown for landmarkID directly, for callers that already hold a
// landmark (e.g. from NearbyWithin) and need the same cooldown Nearby
// applies, without re-running a spatial query. Returns true at most once
// per landmark per 300 s per process lifetime (spec.md §3).
func (idx *Index) ShouldNotify(landmarkID string) bool {
	return idx.shouldNotify(landmarkID)
}

// makeHit builds a Hit and evaluates/updates the notify cooldown for l.
func (idx *Index) makeHit(l Landmark, distM float64) *Hit {
	hit := Hit{Landmark: l, DistanceM: distM, Notify: idx.shouldNotify(l.ID)}
	return &hit
}

func (idx *Index) shouldNotify(landmarkID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	now := idx.now()
	last, seen := idx.lastNotified[landmarkID]
	if seen && now.Sub(last) < notifyCooldown {
		return false
	}
	idx.lastNotified[landmarkID] = now
	return true
}

const earthRadiusMeters = 6371000.0

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}
