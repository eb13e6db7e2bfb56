package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mixdeck/pkg/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const trackSelectColumns = `
	t.id, t.folder_id, t.file_path, t.fs_last_modified, t.file_size, t.date_added, t.last_scanned,
	t.title, t.artist, t.album, t.album_artist, t.track_number, t.disc_number, t.year,
	t.duration, t.sample_rate, t.channels, t.bitrate, t.codec_name,
	t.bpm, t.key_string, t.beat_locations,
	t.rating, t.liked_status, t.play_count, t.last_played,
	t.content_hash, t.notes, t.is_missing`

// scanTrack scans one row selected with trackSelectColumns (plus any extra
// destinations appended by the caller).
func scanTrack(scanner rowScanner, extra ...any) (models.TrackInfo, error) {
	var track models.TrackInfo
	var fsModified, added, scanned, played int64
	var beats string

	dest := []any{
		&track.TrackID, &track.FolderID, &track.FilePath, &fsModified, &track.FileSizeBytes, &added, &scanned,
		&track.Title, &track.Artist, &track.Album, &track.AlbumArtist, &track.TrackNumber, &track.DiscNumber, &track.Year,
		&track.Duration, &track.SampleRate, &track.Channels, &track.Bitrate, &track.CodecName,
		&track.BPM, &track.KeyString, &beats,
		&track.Rating, &track.LikedStatus, &track.PlayCount, &played,
		&track.ContentHash, &track.Notes, &track.IsMissing,
	}
	dest = append(dest, extra...)

	if err := scanner.Scan(dest...); err != nil {
		return track, err
	}

	track.FSLastModified = fromMillis(fsModified)
	track.DateAdded = fromMillis(added)
	track.LastScanned = fromMillis(scanned)
	track.LastPlayed = fromMillis(played)
	track.BeatLocations = decodeBeats(beats)
	return track, nil
}

// scanTrackRows scans a standard track result set. Callers must have
// already deferred rows.Close().
func scanTrackRows(rows *sql.Rows) ([]models.TrackInfo, error) {
	var tracks []models.TrackInfo
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

func encodeBeats(beats []int64) string {
	if len(beats) == 0 {
		return ""
	}
	parts := make([]string, len(beats))
	for i, b := range beats {
		parts[i] = strconv.FormatInt(b, 10)
	}
	return strings.Join(parts, ",")
}

func decodeBeats(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	beats := make([]int64, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			beats = append(beats, v)
		}
	}
	return beats
}

// UpsertTrack inserts a new track or updates the existing row with the same
// file path, returning the track's id. DateAdded is preserved on update.
func (s Store) UpsertTrack(track models.TrackInfo) (int64, error) {
	if track.FilePath == "" {
		return models.UnsetID, fmt.Errorf("%w: track without file path", models.ErrInvalidArgument)
	}
	if track.Duration < 0 {
		return models.UnsetID, fmt.Errorf("%w: negative duration for %s", models.ErrInvalidArgument, track.FilePath)
	}
	if track.DateAdded.IsZero() {
		track.DateAdded = time.Now()
	}

	existingID, err := s.TrackIDByPath(track.FilePath)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return models.UnsetID, err
	}

	if err == nil {
		_, err = s.q.Exec(`
			UPDATE tracks SET folder_id = ?, fs_last_modified = ?, file_size = ?, last_scanned = ?,
				title = ?, artist = ?, album = ?, album_artist = ?, track_number = ?, disc_number = ?, year = ?,
				duration = ?, sample_rate = ?, channels = ?, bitrate = ?, codec_name = ?,
				content_hash = ?, is_missing = FALSE
			WHERE id = ?`,
			track.FolderID, toMillis(track.FSLastModified), track.FileSizeBytes, toMillis(track.LastScanned),
			track.Title, track.Artist, track.Album, track.AlbumArtist, track.TrackNumber, track.DiscNumber, track.Year,
			track.Duration, track.SampleRate, track.Channels, track.Bitrate, track.CodecName,
			track.ContentHash, existingID)
		if err != nil {
			s.db.logger.WithError(err).WithField("track_id", existingID).Error("Failed to update existing track")
			return models.UnsetID, storeErr("update track", err)
		}
		if track.TagIDs != nil {
			if err := s.SetTrackTags(existingID, track.TagIDs); err != nil {
				return models.UnsetID, err
			}
		}
		return existingID, nil
	}

	result, err := s.q.Exec(`
		INSERT INTO tracks (folder_id, file_path, fs_last_modified, file_size, date_added, last_scanned,
			title, artist, album, album_artist, track_number, disc_number, year,
			duration, sample_rate, channels, bitrate, codec_name,
			bpm, key_string, beat_locations, rating, liked_status, play_count, last_played,
			content_hash, notes, is_missing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		track.FolderID, track.FilePath, toMillis(track.FSLastModified), track.FileSizeBytes,
		toMillis(track.DateAdded), toMillis(track.LastScanned),
		track.Title, track.Artist, track.Album, track.AlbumArtist, track.TrackNumber, track.DiscNumber, track.Year,
		track.Duration, track.SampleRate, track.Channels, track.Bitrate, track.CodecName,
		track.BPM, track.KeyString, encodeBeats(track.BeatLocations), track.Rating, track.LikedStatus,
		track.PlayCount, toMillis(track.LastPlayed), track.ContentHash, track.Notes, track.IsMissing)
	if err != nil {
		s.db.logger.WithError(err).WithField("file_path", track.FilePath).Error("Failed to insert new track")
		return models.UnsetID, storeErr("insert track", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.UnsetID, storeErr("last insert id", err)
	}

	if len(track.TagIDs) > 0 {
		if err := s.SetTrackTags(id, track.TagIDs); err != nil {
			return models.UnsetID, err
		}
	}
	return id, nil
}

// TrackIDByPath returns the id of the track with the given file path.
func (s Store) TrackIDByPath(filePath string) (int64, error) {
	var id int64
	err := s.stmt(s.db.trackIDByPathStmt).QueryRow(filePath).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UnsetID, fmt.Errorf("%w: track %q", models.ErrNotFound, filePath)
	}
	if err != nil {
		return models.UnsetID, storeErr("track by path", err)
	}
	return id, nil
}

// GetTrack returns one track, tags included.
func (s Store) GetTrack(id int64) (models.TrackInfo, error) {
	row := s.q.QueryRow(`SELECT `+trackSelectColumns+` FROM tracks t WHERE t.id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrackInfo{}, fmt.Errorf("%w: track with ID %d", models.ErrNotFound, id)
	}
	if err != nil {
		return models.TrackInfo{}, storeErr("get track", err)
	}
	tracks := []models.TrackInfo{track}
	if err := s.attachTags(tracks); err != nil {
		return models.TrackInfo{}, err
	}
	return tracks[0], nil
}

// GetTrackByPath returns the track stored for a file path.
func (s Store) GetTrackByPath(filePath string) (models.TrackInfo, error) {
	id, err := s.TrackIDByPath(filePath)
	if err != nil {
		return models.TrackInfo{}, err
	}
	return s.GetTrack(id)
}

// GetTracksByIDs returns the tracks for ids in no particular order. Unknown
// ids are skipped.
func (s Store) GetTracksByIDs(ids []int64) ([]models.TrackInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	unique := make(map[int64]bool, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if !unique[id] {
			unique[id] = true
			args = append(args, id)
		}
	}

	rows, err := s.q.Query(`SELECT `+trackSelectColumns+` FROM tracks t WHERE t.id IN (`+placeholders(len(args))+`)`, args...)
	if err != nil {
		return nil, storeErr("get tracks by ids", err)
	}
	tracks, err := scanTrackRows(rows)
	rows.Close()
	if err != nil {
		return nil, storeErr("scan tracks", err)
	}
	if err := s.attachTags(tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// TracksInFolder returns every track row of a folder, missing ones included.
func (s Store) TracksInFolder(folderID int64) ([]models.TrackInfo, error) {
	rows, err := s.q.Query(`SELECT `+trackSelectColumns+` FROM tracks t WHERE t.folder_id = ? ORDER BY t.file_path`, folderID)
	if err != nil {
		return nil, storeErr("tracks in folder", err)
	}
	defer rows.Close()
	tracks, err := scanTrackRows(rows)
	if err != nil {
		return nil, storeErr("scan tracks", err)
	}
	rows.Close()
	if err := s.attachTags(tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// MarkMissing flags tracks whose files were not found at scan time.
func (s Store) MarkMissing(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.q.Exec(`UPDATE tracks SET is_missing = TRUE WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return storeErr("mark missing", err)
}

// RemoveTrack deletes a track row; memberships cascade.
func (s Store) RemoveTrack(id int64) error {
	result, err := s.q.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return storeErr("remove track", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: track with ID %d", models.ErrNotFound, id)
	}
	return nil
}

// UpdateBPM stores an analysis result. A bpm of -1 marks a failed analysis.
func (s Store) UpdateBPM(id int64, bpm float64, beats []int64) error {
	_, err := s.stmt(s.db.updateBPMStmt).Exec(bpm, encodeBeats(beats), id)
	if err != nil {
		s.db.logger.WithError(err).WithField("track_id", id).Error("Failed to update bpm")
	}
	return storeErr("update bpm", err)
}

// NextTrackNeedingBPM returns the lowest-id present track with no bpm yet.
func (s Store) NextTrackNeedingBPM() (models.TrackInfo, error) {
	row := s.q.QueryRow(`SELECT ` + trackSelectColumns + ` FROM tracks t
		WHERE t.bpm = 0 AND t.is_missing = FALSE
		ORDER BY t.id LIMIT 1`)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TrackInfo{}, fmt.Errorf("%w: no track needs bpm analysis", models.ErrNotFound)
	}
	return track, storeErr("next track needing bpm", err)
}

// UpdateUserFields stores the user-editable fields of a track.
func (s Store) UpdateUserFields(track models.TrackInfo) error {
	if track.LikedStatus < models.Disliked || track.LikedStatus > models.Liked {
		return fmt.Errorf("%w: liked status %d", models.ErrInvalidArgument, track.LikedStatus)
	}
	result, err := s.q.Exec(`
		UPDATE tracks SET rating = ?, liked_status = ?, key_string = ?, notes = ?, play_count = ?, last_played = ?
		WHERE id = ?`,
		track.Rating, track.LikedStatus, track.KeyString, track.Notes, track.PlayCount,
		toMillis(track.LastPlayed), track.TrackID)
	if err != nil {
		return storeErr("update user fields", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: track with ID %d", models.ErrNotFound, track.TrackID)
	}
	return nil
}

// SetTrackTags replaces the tag associations of a track.
func (s Store) SetTrackTags(trackID int64, tagIDs []int64) error {
	if _, err := s.q.Exec(`DELETE FROM track_tags WHERE track_id = ?`, trackID); err != nil {
		return storeErr("clear track tags", err)
	}
	for _, tagID := range tagIDs {
		if _, err := s.q.Exec(`INSERT OR IGNORE INTO track_tags (track_id, tag_id) VALUES (?, ?)`, trackID, tagID); err != nil {
			return storeErr("insert track tag", err)
		}
	}
	return nil
}

// attachTags fills TagIDs for the given tracks in place.
func (s Store) attachTags(tracks []models.TrackInfo) error {
	if len(tracks) == 0 {
		return nil
	}
	index := make(map[int64][]int, len(tracks))
	args := make([]any, 0, len(tracks))
	for i, t := range tracks {
		if _, seen := index[t.TrackID]; !seen {
			args = append(args, t.TrackID)
		}
		index[t.TrackID] = append(index[t.TrackID], i)
	}

	rows, err := s.q.Query(`SELECT track_id, tag_id FROM track_tags WHERE track_id IN (`+placeholders(len(args))+`) ORDER BY tag_id`, args...)
	if err != nil {
		return storeErr("load track tags", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trackID, tagID int64
		if err := rows.Scan(&trackID, &tagID); err != nil {
			return storeErr("scan track tag", err)
		}
		for _, i := range index[trackID] {
			tracks[i].TagIDs = append(tracks[i].TagIDs, tagID)
		}
	}
	return storeErr("iterate track tags", rows.Err())
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
