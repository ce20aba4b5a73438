package indexdb

import (
	"context"
	"database/sql"
)

type PlanetRow struct {
	WorldID      string
	RunID        string
	Seed         string
	Path         string
	Bytes        int64
	SHA256       string
	WaterHeight  int
	PlainsHeight int
	HillsHeight  int
	Rivers       int
	RecordedAt   string
}

type RegionRow struct {
	WorldID   string
	X, Y      int
	Stage     string
	Error     string
	UpdatedAt string
}

type ChunkRow struct {
	WorldID   string
	RX, RY    int
	CX, CY    int
	Path      string
	Bytes     int64
	SHA256    string
	Trees     int
	Plants    int
	Saves     int
	UpdatedAt string
}

// ListPlanets returns every recorded planet file, newest first.
func ListPlanets(ctx context.Context, db *sql.DB, worldID string) ([]PlanetRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT world_id,run_id,seed,path,bytes,sha256,water_height,plains_height,hills_height,rivers,recorded_at
		FROM planets WHERE (?='' OR world_id=?) ORDER BY recorded_at DESC`, worldID, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PlanetRow
	for rows.Next() {
		var r PlanetRow
		if err := rows.Scan(&r.WorldID, &r.RunID, &r.Seed, &r.Path, &r.Bytes, &r.SHA256,
			&r.WaterHeight, &r.PlainsHeight, &r.HillsHeight, &r.Rivers, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ListRegions(ctx context.Context, db *sql.DB, worldID string) ([]RegionRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT world_id,rx,ry,stage,COALESCE(error,''),updated_at
		FROM regions WHERE (?='' OR world_id=?) ORDER BY world_id,ry,rx`, worldID, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RegionRow
	for rows.Next() {
		var r RegionRow
		if err := rows.Scan(&r.WorldID, &r.X, &r.Y, &r.Stage, &r.Error, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListChunks returns the saved chunks of one region. A nil region lists all.
func ListChunks(ctx context.Context, db *sql.DB, worldID string, region *[2]int) ([]ChunkRow, error) {
	q := `SELECT world_id,rx,ry,cx,cy,path,bytes,sha256,trees,plants,saves,updated_at FROM chunks WHERE (?='' OR world_id=?)`
	args := []any{worldID, worldID}
	if region != nil {
		q += ` AND rx=? AND ry=?`
		args = append(args, region[0], region[1])
	}
	q += ` ORDER BY world_id,ry,rx,cy,cx`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.WorldID, &r.RX, &r.RY, &r.CX, &r.CY, &r.Path, &r.Bytes, &r.SHA256,
			&r.Trees, &r.Plants, &r.Saves, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
