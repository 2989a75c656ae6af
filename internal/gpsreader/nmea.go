package gpsreader

import (
	"strconv"
	"strings"
)

// parsedGGA holds the fields $--GGA contributes to a Fix: position,
// altitude, fix quality, and satellite count.
type parsedGGA struct {
	latitude   float64
	longitude  float64
	altitude   float64
	satellites int
	fixQuality int
}

// parsedRMC holds the fields $--RMC contributes to a Fix: position, speed,
// and heading. RMC carries no fix-quality field and never supplies one:
// Reader.Read reports a fix only after a GGA sentence with fix quality
// >= 1, and a valid ("A") RMC then only adds its position, speed and
// heading.
type parsedRMC struct {
	latitude  float64
	longitude float64
	speedKnots float64
	heading   float64
	valid     bool
}

// splitSentence strips the NMEA checksum suffix and returns the talker
// sentence id (e.g. "GGA") and its comma-separated fields, accepting any
// talker prefix (GP, GN, GL, GA, ...).
func splitSentence(line string) (sentenceType string, fields []string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") || len(line) < 6 {
		return "", nil, false
	}
	body := line[1:]
	if idx := strings.IndexByte(body, '*'); idx >= 0 {
		body = body[:idx]
	}
	fields = strings.Split(body, ",")
	if len(fields) == 0 || len(fields[0]) < 5 {
		return "", nil, false
	}
	return fields[0][2:], fields, true
}

// parseGGA parses a $--GGA sentence. Returns ok=false if the sentence is
// malformed; a no-fix sentence (fix quality 0) parses successfully and is
// filtered out by Reader.Read.
func parseGGA(fields []string) (parsedGGA, bool) {
	if len(fields) < 10 {
		return parsedGGA{}, false
	}
	lat, okLat := parseCoordinate(fields[2], fields[3])
	lon, okLon := parseCoordinate(fields[4], fields[5])
	quality, errQ := strconv.Atoi(fields[6])
	satellites, _ := strconv.Atoi(fields[7])
	altitude, _ := strconv.ParseFloat(fields[9], 64)

	if !okLat || !okLon || errQ != nil {
		return parsedGGA{}, false
	}
	return parsedGGA{
		latitude:   lat,
		longitude:  lon,
		altitude:   altitude,
		satellites: satellites,
		fixQuality: quality,
	}, true
}

// parseRMC parses a $--RMC sentence.
func parseRMC(fields []string) (parsedRMC, bool) {
	if len(fields) < 9 {
		return parsedRMC{}, false
	}
	valid := fields[2] == "A"
	lat, okLat := parseCoordinate(fields[3], fields[4])
	lon, okLon := parseCoordinate(fields[5], fields[6])
	speed, _ := strconv.ParseFloat(fields[7], 64)
	heading, _ := strconv.ParseFloat(fields[8], 64)

	if !okLat || !okLon {
		return parsedRMC{}, false
	}
	return parsedRMC{
		latitude:   lat,
		longitude:  lon,
		speedKnots: speed,
		heading:    heading,
		valid:      valid,
	}, true
}

// parseCoordinate converts an NMEA "ddmm.mmmm"/"dddmm.mmmm" value plus its
// hemisphere letter (N/S or E/W) into signed decimal degrees.
func parseCoordinate(raw, hemisphere string) (float64, bool) {
	if raw == "" || hemisphere == "" {
		return 0, false
	}
	dotIdx := strings.IndexByte(raw, '.')
	if dotIdx < 2 {
		return 0, false
	}
	degreesDigits := dotIdx - 2
	degrees, err := strconv.ParseFloat(raw[:degreesDigits], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(raw[degreesDigits:], 64)
	if err != nil {
		return 0, false
	}
	decimal := degrees + minutes/60

	switch hemisphere {
	case "S", "W":
		decimal = -decimal
	case "N", "E":
		// no-op
	default:
		return 0, false
	}
	return decimal, true
}

const knotsToMetersPerSecond = 0.514444

func knotsToMPS(knots float64) float64 { return knots * knotsToMetersPerSecond }
