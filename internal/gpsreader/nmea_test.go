package gpsreader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinateConvertsDegreesMinutesToDecimal(t *testing.T) {
	lat, ok := parseCoordinate("3723.2475", "N")
	require.True(t, ok)
	assert.InDelta(t, 37.387458, lat, 1e-6)

	lon, ok := parseCoordinate("12202.4430", "W")
	require.True(t, ok)
	assert.InDelta(t, -122.040717, lon, 1e-6)
}

func TestParseCoordinateRejectsUnknownHemisphere(t *testing.T) {
	_, ok := parseCoordinate("3723.2475", "Q")
	assert.False(t, ok)
}

func TestParseGGAExtractsFixQualityAndAltitude(t *testing.T) {
	_, fields, ok := splitSentence("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.True(t, ok)

	gga, ok := parseGGA(fields)
	require.True(t, ok)
	assert.Equal(t, 1, gga.fixQuality)
	assert.Equal(t, 8, gga.satellites)
	assert.InDelta(t, 545.4, gga.altitude, 1e-9)
}

func TestParseGGARejectsTooFewFields(t *testing.T) {
	_, ok := parseGGA([]string{"GPGGA", "123519"})
	assert.False(t, ok)
}

func TestParseRMCExtractsSpeedAndHeading(t *testing.T) {
	_, fields, ok := splitSentence("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.True(t, ok)

	rmc, ok := parseRMC(fields)
	require.True(t, ok)
	assert.True(t, rmc.valid)
	assert.InDelta(t, 22.4, rmc.speedKnots, 1e-9)
	assert.InDelta(t, 84.4, rmc.heading, 1e-9)
}

func TestParseRMCFlagsInvalidStatus(t *testing.T) {
	_, fields, ok := splitSentence("$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*68")
	require.True(t, ok)

	rmc, ok := parseRMC(fields)
	require.True(t, ok)
	assert.False(t, rmc.valid)
}

func TestSplitSentenceAcceptsAnyTalkerPrefix(t *testing.T) {
	sentenceType, _, ok := splitSentence("$GNGGA,123519,,,,,,0,,,,,,,*7B")
	require.True(t, ok)
	assert.Equal(t, "GGA", sentenceType)
}

func TestSplitSentenceRejectsNonNMEALine(t *testing.T) {
	_, _, ok := splitSentence("not an nmea sentence")
	assert.False(t, ok)
}
