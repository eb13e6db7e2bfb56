package database

import (
	"fmt"
	"path/filepath"
	"strings"

	"mixdeck/pkg/models"
)

// sortColumns maps sortable columns to SQL expressions over the tracks
// alias t (and m for mix-scoped queries).
var sortColumns = map[models.ColumnID]string{
	models.ColumnTitle:        "t.title COLLATE NOCASE",
	models.ColumnArtist:       "t.artist COLLATE NOCASE",
	models.ColumnAlbum:        "t.album COLLATE NOCASE",
	models.ColumnAlbumArtist:  "t.album_artist COLLATE NOCASE",
	models.ColumnTrackNumber:  "t.track_number",
	models.ColumnDiscNumber:   "t.disc_number",
	models.ColumnYear:         "t.year",
	models.ColumnDuration:     "t.duration",
	models.ColumnBPM:          "t.bpm",
	models.ColumnKey:          "t.key_string",
	models.ColumnRating:       "t.rating",
	models.ColumnLiked:        "t.liked_status",
	models.ColumnPlayCount:    "t.play_count",
	models.ColumnLastPlayed:   "t.last_played",
	models.ColumnDateAdded:    "t.date_added",
	models.ColumnFilePath:     "t.file_path",
	models.ColumnCodec:        "t.codec_name",
	models.ColumnBitrate:      "t.bitrate",
	models.ColumnSampleRate:   "t.sample_rate",
	models.ColumnOrderInMix:   "m.order_in_mix",
	models.ColumnMixStartTime: "m.mix_start_time",
}

const defaultTrackOrder = "t.artist COLLATE NOCASE, t.album COLLATE NOCASE, t.track_number, t.title COLLATE NOCASE, t.id"

// trackQuery is a translated QueryArgs: FROM + WHERE with bound parameters.
type trackQuery struct {
	from  string
	where string
	args  []any
	mix   bool
}

// escapeLike escapes LIKE wildcards; patterns use ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildTrackQuery composes the FROM and WHERE clauses for a track query.
func buildTrackQuery(args models.QueryArgs) trackQuery {
	q := trackQuery{from: "tracks t"}
	var conds []string

	if args.IsWorkingSetQuery() {
		q.from += " JOIN working_set_tracks w ON w.track_id = t.id AND w.working_set_id = ?"
		q.args = append(q.args, args.WorkingSetID)
	}
	if args.IsMixQuery() {
		q.from += " JOIN mix_tracks m ON m.track_id = t.id AND m.mix_id = ?"
		q.args = append(q.args, args.MixID)
		q.mix = true
	}

	for _, term := range args.SearchTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		pattern := "%" + escapeLike(term) + "%"
		conds = append(conds, `(t.title LIKE ? ESCAPE '\' OR t.artist LIKE ? ESCAPE '\' OR t.album LIKE ? ESCAPE '\')`)
		q.args = append(q.args, pattern, pattern, pattern)
	}

	if args.FolderPath != "" {
		prefix := strings.TrimRight(args.FolderPath, string(filepath.Separator)) + string(filepath.Separator)
		conds = append(conds, `t.file_path LIKE ? ESCAPE '\'`)
		q.args = append(q.args, escapeLike(prefix)+"%")
	}

	if len(conds) > 0 {
		q.where = " WHERE " + strings.Join(conds, " AND ")
	}
	return q
}

// orderClause composes ORDER BY from the sort keys. Columns that need the
// mix join are ignored outside mix queries.
func orderClause(args models.QueryArgs, mix bool) string {
	var terms []string
	for _, key := range args.SortOrder {
		expr, ok := sortColumns[key.Column]
		if !ok {
			continue
		}
		if strings.HasPrefix(expr, "m.") && !mix {
			continue
		}
		dir := "DESC"
		if key.Ascending {
			dir = "ASC"
		}
		terms = append(terms, expr+" "+dir)
	}

	switch {
	case len(terms) == 0 && mix:
		return " ORDER BY m.order_in_mix ASC"
	case len(terms) == 0:
		return " ORDER BY " + defaultTrackOrder
	case mix:
		return " ORDER BY " + strings.Join(terms, ", ") + ", m.order_in_mix"
	default:
		return " ORDER BY " + strings.Join(terms, ", ") + ", t.id"
	}
}

func pageClause(args models.QueryArgs) (string, []any) {
	if args.DisablePaging {
		return "", nil
	}
	page := args.Page
	if page < 0 {
		page = 0
	}
	return " LIMIT ? OFFSET ?", []any{models.PageSize, page * models.PageSize}
}

// QueryTracks returns one page of tracks for the query.
func (s Store) QueryTracks(args models.QueryArgs) ([]models.TrackInfo, error) {
	tracks, _, err := s.queryTracks(args)
	return tracks, err
}

// QueryMixView returns one page of a mix-scoped query along with the
// orderInMix of every returned row.
func (s Store) QueryMixView(args models.QueryArgs) ([]models.TrackInfo, []int, error) {
	if !args.IsMixQuery() {
		return nil, nil, fmt.Errorf("%w: query is not scoped to a mix", models.ErrInvalidArgument)
	}
	return s.queryTracks(args)
}

func (s Store) queryTracks(args models.QueryArgs) ([]models.TrackInfo, []int, error) {
	tq := buildTrackQuery(args)
	limit, limitArgs := pageClause(args)

	cols := trackSelectColumns
	if tq.mix {
		cols += ", m.order_in_mix"
	}
	query := "SELECT " + cols + " FROM " + tq.from + tq.where + orderClause(args, tq.mix) + limit

	rows, err := s.q.Query(query, append(tq.args, limitArgs...)...)
	if err != nil {
		return nil, nil, storeErr("query tracks", err)
	}

	var tracks []models.TrackInfo
	var orders []int
	for rows.Next() {
		var order int
		var extra []any
		if tq.mix {
			extra = append(extra, &order)
		}
		track, err := scanTrack(rows, extra...)
		if err != nil {
			rows.Close()
			return nil, nil, storeErr("scan track", err)
		}
		tracks = append(tracks, track)
		if tq.mix {
			orders = append(orders, order)
		}
	}
	iterErr := rows.Err()
	rows.Close()
	if iterErr != nil {
		return nil, nil, storeErr("iterate tracks", iterErr)
	}

	if err := s.attachTags(tracks); err != nil {
		return nil, nil, err
	}
	return tracks, orders, nil
}

// CountTracks returns the total number of rows the query matches across
// all pages.
func (s Store) CountTracks(args models.QueryArgs) (int, error) {
	tq := buildTrackQuery(args)
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM "+tq.from+tq.where, tq.args...).Scan(&count)
	return count, storeErr("count tracks", err)
}

// SumDuration returns the summed duration in ms of every matching row.
func (s Store) SumDuration(args models.QueryArgs) (int64, error) {
	tq := buildTrackQuery(args)
	var total int64
	err := s.q.QueryRow("SELECT COALESCE(SUM(t.duration), 0) FROM "+tq.from+tq.where, tq.args...).Scan(&total)
	return total, storeErr("sum duration", err)
}
