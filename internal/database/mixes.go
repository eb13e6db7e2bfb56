package database

import (
	"database/sql"
	"errors"
	"fmt"

	"mixdeck/pkg/models"
)

const mixTrackColumns = `mix_id, order_in_mix, track_id, silence_start, fade_in_start, fade_in_end,
	fade_out_start, fade_out_end, cutoff_time, volume_at_start, volume_at_end, mix_start_time, crossfade_duration`

// InsertMix writes a new mix header and returns its id.
func (s Store) InsertMix(mix models.Mix) (int64, error) {
	if mix.Name == "" {
		return models.UnsetID, fmt.Errorf("%w: mix without name", models.ErrInvalidArgument)
	}
	result, err := s.q.Exec(`
		INSERT INTO mixes (name, timestamp, number_of_tracks, total_duration)
		VALUES (?, ?, ?, ?)`,
		mix.Name, toMillis(mix.Timestamp), mix.NumberOfTracks, mix.TotalDuration)
	if err != nil {
		return models.UnsetID, storeErr("insert mix", err)
	}
	id, err := result.LastInsertId()
	return id, storeErr("last insert id", err)
}

// UpdateMix rewrites a mix header.
func (s Store) UpdateMix(mix models.Mix) error {
	result, err := s.q.Exec(`
		UPDATE mixes SET name = ?, timestamp = ?, number_of_tracks = ?, total_duration = ?
		WHERE id = ?`,
		mix.Name, toMillis(mix.Timestamp), mix.NumberOfTracks, mix.TotalDuration, mix.MixID)
	if err != nil {
		return storeErr("update mix", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: mix with ID %d", models.ErrNotFound, mix.MixID)
	}
	return nil
}

// GetMix returns one mix header.
func (s Store) GetMix(id int64) (models.Mix, error) {
	var mix models.Mix
	var ts int64
	err := s.q.QueryRow(`SELECT id, name, timestamp, number_of_tracks, total_duration FROM mixes WHERE id = ?`, id).
		Scan(&mix.MixID, &mix.Name, &ts, &mix.NumberOfTracks, &mix.TotalDuration)
	if errors.Is(err, sql.ErrNoRows) {
		return mix, fmt.Errorf("%w: mix with ID %d", models.ErrNotFound, id)
	}
	if err != nil {
		return mix, storeErr("get mix", err)
	}
	mix.Timestamp = fromMillis(ts)
	return mix, nil
}

// ListMixes returns every mix header, newest first.
func (s Store) ListMixes() ([]models.Mix, error) {
	rows, err := s.q.Query(`SELECT id, name, timestamp, number_of_tracks, total_duration FROM mixes ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, storeErr("list mixes", err)
	}
	defer rows.Close()

	var mixes []models.Mix
	for rows.Next() {
		var mix models.Mix
		var ts int64
		if err := rows.Scan(&mix.MixID, &mix.Name, &ts, &mix.NumberOfTracks, &mix.TotalDuration); err != nil {
			return nil, storeErr("scan mix", err)
		}
		mix.Timestamp = fromMillis(ts)
		mixes = append(mixes, mix)
	}
	return mixes, storeErr("iterate mixes", rows.Err())
}

// RemoveMix deletes a mix and its track rows.
func (s Store) RemoveMix(id int64) error {
	result, err := s.q.Exec(`DELETE FROM mixes WHERE id = ?`, id)
	if err != nil {
		return storeErr("remove mix", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: mix with ID %d", models.ErrNotFound, id)
	}
	return nil
}

// ReplaceMixTracks deletes every track row of the mix and inserts tracks in
// their place. Call it inside a transaction so the swap is atomic.
func (s Store) ReplaceMixTracks(mixID int64, tracks []models.MixTrack) error {
	if _, err := s.q.Exec(`DELETE FROM mix_tracks WHERE mix_id = ?`, mixID); err != nil {
		return storeErr("clear mix tracks", err)
	}
	for _, mt := range tracks {
		_, err := s.q.Exec(`INSERT INTO mix_tracks (`+mixTrackColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			mixID, mt.OrderInMix, mt.TrackID, mt.SilenceStart, mt.FadeInStart, mt.FadeInEnd,
			mt.FadeOutStart, mt.FadeOutEnd, mt.CutoffTime, mt.VolumeAtStart, mt.VolumeAtEnd,
			mt.MixStartTime, mt.CrossfadeDuration)
		if err != nil {
			return storeErr("insert mix track", err)
		}
	}
	return nil
}

// MixTracks returns the rows of a mix ordered by orderInMix.
func (s Store) MixTracks(mixID int64) ([]models.MixTrack, error) {
	rows, err := s.q.Query(`SELECT `+mixTrackColumns+` FROM mix_tracks WHERE mix_id = ? ORDER BY order_in_mix`, mixID)
	if err != nil {
		return nil, storeErr("mix tracks", err)
	}
	defer rows.Close()

	var tracks []models.MixTrack
	for rows.Next() {
		var mt models.MixTrack
		if err := rows.Scan(&mt.MixID, &mt.OrderInMix, &mt.TrackID, &mt.SilenceStart, &mt.FadeInStart, &mt.FadeInEnd,
			&mt.FadeOutStart, &mt.FadeOutEnd, &mt.CutoffTime, &mt.VolumeAtStart, &mt.VolumeAtEnd,
			&mt.MixStartTime, &mt.CrossfadeDuration); err != nil {
			return nil, storeErr("scan mix track", err)
		}
		tracks = append(tracks, mt)
	}
	return tracks, storeErr("iterate mix tracks", rows.Err())
}

// MixIDsForFolder returns the mixes that reference at least one track of the
// folder.
func (s Store) MixIDsForFolder(folderID int64) ([]int64, error) {
	rows, err := s.q.Query(`SELECT DISTINCT m.mix_id FROM mix_tracks m
		JOIN tracks t ON t.id = m.track_id WHERE t.folder_id = ? ORDER BY m.mix_id`, folderID)
	if err != nil {
		return nil, storeErr("mix ids for folder", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan mix id", err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr("iterate mix ids", rows.Err())
}
