package geodata

import "testing"

func TestAdaptiveRadiiClampedToBounds(t *testing.T) {
	waypoints := []Waypoint{
		{Lat: 40.0, Lon: -74.0, Name: "start"},
		{Lat: 40.01, Lon: -74.01, Name: "near"},
		{Lat: 41.5, Lon: -70.2, Name: "far"},
	}
	radii := AdaptiveRadii(waypoints)
	if len(radii) != len(waypoints) {
		t.Fatalf("expected one radius per waypoint, got %d", len(radii))
	}
	for i, r := range radii {
		if r < minAdaptiveRadiusKm || r > maxAdaptiveRadiusKm {
			t.Errorf("radius[%d] = %v out of bounds [%v, %v]", i, r, minAdaptiveRadiusKm, maxAdaptiveRadiusKm)
		}
	}
}

func TestDenseWaypointsGetSmallerRadiusThanIsolatedOnes(t *testing.T) {
	dense := []Waypoint{
		{Lat: 45.0, Lon: 10.0},
		{Lat: 45.001, Lon: 10.001},
		{Lat: 45.002, Lon: 10.002},
	}
	isolated := []Waypoint{
		{Lat: 45.0, Lon: 10.0},
	}
	denseRadii := AdaptiveRadii(dense)
	isolatedRadii := AdaptiveRadii(isolated)
	if denseRadii[0] >= isolatedRadii[0] {
		t.Errorf("expected densely clustered waypoint radius (%v) < isolated waypoint radius (%v)", denseRadii[0], isolatedRadii[0])
	}
}

func TestClassifyArea(t *testing.T) {
	cases := []struct {
		lat  float64
		want areaClass
	}{
		{45, areaUrban},
		{-50, areaUrban},
		{25, areaSuburban},
		{65, areaSuburban},
		{5, areaRural},
		{80, areaRural},
	}
	for _, c := range cases {
		if got := classifyArea(c.lat); got != c.want {
			t.Errorf("classifyArea(%v) = %v, want %v", c.lat, got, c.want)
		}
	}
}
