package landmark

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// jsonLandmark mirrors the on-disk JSON record shape, matching
// original_source/backend/landmarks_db.py's table columns.
type jsonLandmark struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RadiusM  float64 `json:"radius_m"`
	Category string  `json:"category"`
}

// LoadJSON loads a landmark set from a JSON array file and builds an
// Index over it.
func LoadJSON(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("landmark: read %q: %w", path, err)
	}

	var records []jsonLandmark
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("landmark: parse %q: %w", path, err)
	}

	landmarks := make([]Landmark, len(records))
	for i, r := range records {
		landmarks[i] = Landmark{
			ID: r.ID, Name: r.Name, Lat: r.Lat, Lon: r.Lon,
			RadiusM: r.RadiusM, Category: r.Category,
		}
	}
	return New(landmarks), nil
}

// LoadSQLite loads a landmark set from a SQLite database's `landmarks`
// table, matching original_source/backend/landmarks_db.py's schema
// (id TEXT, name, lat, lon, radius_m, category).
func LoadSQLite(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("landmark: open %q: %w", path, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, name, lat, lon, radius_m, category FROM landmarks`)
	if err != nil {
		return nil, fmt.Errorf("landmark: query %q: %w", path, err)
	}
	defer rows.Close()

	var landmarks []Landmark
	for rows.Next() {
		var l Landmark
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lon, &l.RadiusM, &l.Category); err != nil {
			return nil, fmt.Errorf("landmark: scan: %w", err)
		}
		landmarks = append(landmarks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("landmark: rows: %w", err)
	}
	return New(landmarks), nil
}
