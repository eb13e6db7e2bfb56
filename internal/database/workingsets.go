package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mixdeck/pkg/models"
)

// InsertWorkingSet writes a working-set header and returns its id.
func (s Store) InsertWorkingSet(ws models.WorkingSet) (int64, error) {
	if ws.Name == "" {
		return models.UnsetID, fmt.Errorf("%w: working set without name", models.ErrInvalidArgument)
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now()
	}
	result, err := s.q.Exec(`
		INSERT INTO working_sets (name, track_count, total_duration, created_at)
		VALUES (?, ?, ?, ?)`,
		ws.Name, ws.TrackCount, ws.TotalDuration, toMillis(ws.CreatedAt))
	if err != nil {
		return models.UnsetID, storeErr("insert working set", err)
	}
	id, err := result.LastInsertId()
	return id, storeErr("last insert id", err)
}

// InsertWorkingSetTracksFromQuery copies every track matched by args into
// the working set and returns the number of rows added.
func (s Store) InsertWorkingSetTracksFromQuery(wsID int64, args models.QueryArgs) (int64, error) {
	args.DisablePaging = true
	tq := buildTrackQuery(args)
	params := append([]any{wsID}, tq.args...)
	result, err := s.q.Exec(
		"INSERT OR IGNORE INTO working_set_tracks (working_set_id, track_id) SELECT DISTINCT ?, t.id FROM "+tq.from+tq.where,
		params...)
	if err != nil {
		return 0, storeErr("insert working set tracks from query", err)
	}
	n, err := result.RowsAffected()
	return n, storeErr("rows affected", err)
}

// AddWorkingSetTracks inserts membership rows; existing pairs are ignored.
func (s Store) AddWorkingSetTracks(wsID int64, trackIDs []int64) error {
	for _, id := range trackIDs {
		if _, err := s.q.Exec(`INSERT OR IGNORE INTO working_set_tracks (working_set_id, track_id) VALUES (?, ?)`, wsID, id); err != nil {
			return storeErr("add working set track", err)
		}
	}
	return nil
}

// RemoveWorkingSetTracks deletes membership rows.
func (s Store) RemoveWorkingSetTracks(wsID int64, trackIDs []int64) error {
	for _, id := range trackIDs {
		if _, err := s.q.Exec(`DELETE FROM working_set_tracks WHERE working_set_id = ? AND track_id = ?`, wsID, id); err != nil {
			return storeErr("remove working set track", err)
		}
	}
	return nil
}

// RecountWorkingSet refreshes the header's track count and total duration
// from the membership table.
func (s Store) RecountWorkingSet(wsID int64) (models.WorkingSet, error) {
	_, err := s.q.Exec(`
		UPDATE working_sets SET
			track_count = (SELECT COUNT(*) FROM working_set_tracks WHERE working_set_id = ?),
			total_duration = (SELECT COALESCE(SUM(t.duration), 0) FROM working_set_tracks w
				JOIN tracks t ON t.id = w.track_id WHERE w.working_set_id = ?)
		WHERE id = ?`, wsID, wsID, wsID)
	if err != nil {
		return models.WorkingSet{}, storeErr("recount working set", err)
	}
	return s.GetWorkingSet(wsID)
}

// GetWorkingSet returns one working-set header.
func (s Store) GetWorkingSet(id int64) (models.WorkingSet, error) {
	var ws models.WorkingSet
	var created int64
	err := s.q.QueryRow(`SELECT id, name, track_count, total_duration, created_at FROM working_sets WHERE id = ?`, id).
		Scan(&ws.ID, &ws.Name, &ws.TrackCount, &ws.TotalDuration, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ws, fmt.Errorf("%w: working set with ID %d", models.ErrNotFound, id)
	}
	if err != nil {
		return ws, storeErr("get working set", err)
	}
	ws.CreatedAt = fromMillis(created)
	return ws, nil
}

// ListWorkingSets returns every working-set header ordered by name.
func (s Store) ListWorkingSets() ([]models.WorkingSet, error) {
	rows, err := s.q.Query(`SELECT id, name, track_count, total_duration, created_at FROM working_sets ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, storeErr("list working sets", err)
	}
	defer rows.Close()

	var sets []models.WorkingSet
	for rows.Next() {
		var ws models.WorkingSet
		var created int64
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.TrackCount, &ws.TotalDuration, &created); err != nil {
			return nil, storeErr("scan working set", err)
		}
		ws.CreatedAt = fromMillis(created)
		sets = append(sets, ws)
	}
	return sets, storeErr("iterate working sets", rows.Err())
}

// WorkingSetTrackIDs returns the member ids of a working set.
func (s Store) WorkingSetTrackIDs(wsID int64) ([]int64, error) {
	rows, err := s.q.Query(`SELECT track_id FROM working_set_tracks WHERE working_set_id = ? ORDER BY track_id`, wsID)
	if err != nil {
		return nil, storeErr("working set track ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan track id", err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr("iterate track ids", rows.Err())
}

// RemoveWorkingSet deletes a working set and its memberships.
func (s Store) RemoveWorkingSet(id int64) error {
	result, err := s.q.Exec(`DELETE FROM working_sets WHERE id = ?`, id)
	if err != nil {
		return storeErr("remove working set", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: working set with ID %d", models.ErrNotFound, id)
	}
	return nil
}
