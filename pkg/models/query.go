package models

// PageSize is the number of rows fetched per query page.
const PageSize = 1024

// ColumnID identifies a sortable, displayable track column
type ColumnID int

const (
	ColumnTitle ColumnID = iota
	ColumnArtist
	ColumnAlbum
	ColumnAlbumArtist
	ColumnTrackNumber
	ColumnDiscNumber
	ColumnYear
	ColumnDuration
	ColumnBPM
	ColumnKey
	ColumnRating
	ColumnLiked
	ColumnPlayCount
	ColumnLastPlayed
	ColumnDateAdded
	ColumnFilePath
	ColumnCodec
	ColumnBitrate
	ColumnSampleRate
	ColumnOrderInMix
	ColumnMixStartTime
	// overview columns
	ColumnName
	ColumnCount
	ColumnTotalDuration
	ColumnLastScanned
)

var columnTitles = map[ColumnID]string{
	ColumnTitle:         "Title",
	ColumnArtist:        "Artist",
	ColumnAlbum:         "Album",
	ColumnAlbumArtist:   "Album Artist",
	ColumnTrackNumber:   "#",
	ColumnDiscNumber:    "Disc",
	ColumnYear:          "Year",
	ColumnDuration:      "Duration",
	ColumnBPM:           "BPM",
	ColumnKey:           "Key",
	ColumnRating:        "Rating",
	ColumnLiked:         "Liked",
	ColumnPlayCount:     "Plays",
	ColumnLastPlayed:    "Last Played",
	ColumnDateAdded:     "Added",
	ColumnFilePath:      "File",
	ColumnCodec:         "Codec",
	ColumnBitrate:       "Bitrate",
	ColumnSampleRate:    "Sample Rate",
	ColumnOrderInMix:    "Order",
	ColumnMixStartTime:  "Starts At",
	ColumnName:          "Name",
	ColumnCount:         "Tracks",
	ColumnTotalDuration: "Total Duration",
	ColumnLastScanned:   "Last Scanned",
}

// Title returns the header text for a column.
func (c ColumnID) Title() string {
	if t, ok := columnTitles[c]; ok {
		return t
	}
	return "?"
}

// SortKey is one ORDER BY term
type SortKey struct {
	Column    ColumnID `json:"column"`
	Ascending bool     `json:"ascending"`
}

// QueryArgs is the declarative track query shared by the query engine, the
// navigation nodes and working-set creation.
type QueryArgs struct {
	SearchTerms   []string  `json:"searchTerms,omitempty"`
	SortOrder     []SortKey `json:"sortOrder,omitempty"`
	FolderPath    string    `json:"folderPath,omitempty"`
	WorkingSetID  int64     `json:"workingSetId"`
	MixID         int64     `json:"mixId"`
	Page          int       `json:"page"`
	DisablePaging bool      `json:"disablePaging"`
}

// NewQueryArgs returns an unscoped query over the whole library.
func NewQueryArgs() QueryArgs {
	return QueryArgs{WorkingSetID: UnsetID, MixID: UnsetID}
}

// IsMixQuery reports whether the query is scoped to a mix.
func (q QueryArgs) IsMixQuery() bool {
	return q.MixID > 0
}

// IsWorkingSetQuery reports whether the query is scoped to a working set.
func (q QueryArgs) IsWorkingSetQuery() bool {
	return q.WorkingSetID > 0
}
