package geodata

import "math"

// Adaptive radius bounds, per spec.md §4.I ("Clamp to [3 km, 20 km]").
const (
	minAdaptiveRadiusKm = 3.0
	maxAdaptiveRadiusKm = 20.0

	densitySearchRadiusKm = 50.0 // "local density factor based on other waypoints within 50 km"
)

// areaClass is the coarse heuristic area classification
// AdaptiveRadiusCalculator.detect_area_type uses, grounded on
// original_source/backend/geocoding/utils/adaptive_radius_calculator.py.
type areaClass string

const (
	areaUrban    areaClass = "urban"
	areaSuburban areaClass = "suburban"
	areaRural    areaClass = "rural"
)

// classifyArea reproduces the original's latitude-band heuristic: "Áreas muy
// pobladas típicamente están en ciertas latitudes" (temperate bands are
// treated as more densely populated than polar or equatorial ones).
func classifyArea(lat float64) areaClass {
	absLat := math.Abs(lat)
	switch {
	case absLat >= 30 && absLat <= 60:
		return areaUrban
	case (absLat >= 20 && absLat < 30) || (absLat > 60 && absLat <= 70):
		return areaSuburban
	default:
		return areaRural
	}
}

// baseRadiusKm returns the area-class base radius the original assigns
// before density/overlap adjustment.
func baseRadiusKm(class areaClass) float64 {
	switch class {
	case areaUrban:
		return 6.0
	case areaSuburban:
		return 10.0
	default:
		return 15.0
	}
}

// haversineKm is the great-circle distance in kilometers, duplicated here
// (rather than imported from internal/tripstore, which is unexported)
// since it is a two-line formula used identically across the codebase.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// densityFactor measures how closely packed a waypoint's neighbors are
// within densitySearchRadiusKm, reproducing
// calculate_density_factor's "more nearby waypoints -> smaller factor ->
// smaller radius" behavior. A waypoint with no neighbors within range gets
// the neutral factor 1.0.
func densityFactor(idx int, waypoints []Waypoint) float64 {
	var nearby int
	var totalDist float64
	for j, other := range waypoints {
		if j == idx {
			continue
		}
		d := haversineKm(waypoints[idx].Lat, waypoints[idx].Lon, other.Lat, other.Lon)
		if d <= densitySearchRadiusKm {
			nearby++
			totalDist += d
		}
	}
	if nearby == 0 {
		return 1.0
	}
	avgDist := totalDist / float64(nearby)
	factor := avgDist / 25.0
	if factor < 0.5 {
		factor = 0.5
	}
	if factor > 1.5 {
		factor = 1.5
	}
	return factor
}

// overlapReductionFactor penalizes a waypoint whose coverage circle would
// significantly overlap a neighbor's, reproducing
// calculate_overlap_reduction_factor.
func overlapReductionFactor(idx int, waypoints []Waypoint, baseRadius float64) float64 {
	var penalty float64
	threshold := baseRadius * 1.2
	for j, other := range waypoints {
		if j == idx {
			continue
		}
		d := haversineKm(waypoints[idx].Lat, waypoints[idx].Lon, other.Lat, other.Lon)
		if d < threshold {
			penalty += math.Max(0, (threshold-d)/threshold)
		}
	}
	factor := 1.0 - penalty*0.3
	if factor < 0.6 {
		factor = 0.6
	}
	return factor
}

// AdaptiveRadii computes an optimized per-waypoint radius for every entry
// in waypoints, per spec.md §4.I's "Adaptive radius (when not
// single-center)": area-class base, modulated by local density and
// overlap-reduction, clamped to [3, 20] km.
func AdaptiveRadii(waypoints []Waypoint) []float64 {
	radii := make([]float64, len(waypoints))
	for i, wp := range waypoints {
		base := baseRadiusKm(classifyArea(wp.Lat))
		afterDensity := base * densityFactor(i, waypoints)
		final := afterDensity * overlapReductionFactor(i, waypoints, afterDensity)
		if final < minAdaptiveRadiusKm {
			final = minAdaptiveRadiusKm
		}
		if final > maxAdaptiveRadiusKm {
			final = maxAdaptiveRadiusKm
		}
		radii[i] = final
	}
	return radii
}
