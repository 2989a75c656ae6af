package gpsreader

// Fix is the GPS Reader's public snapshot type: spec.md §4.C's
// GpsFix { latitude, longitude, altitude?, speed?, heading?, satellites?,
// fix_quality }.
type Fix struct {
	Latitude   float64
	Longitude  float64
	Altitude   *float64
	Speed      *float64
	Heading    *float64
	Satellites *int
	FixQuality int
}
