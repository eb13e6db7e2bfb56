package models

import "time"

// UnsetID marks an identifier that has not been assigned by the store.
const UnsetID int64 = -1

// Liked status values
const (
	Disliked = -1
	Neutral  = 0
	Liked    = 1
)

// Folder is a registered library root that gets scanned for audio files
type Folder struct {
	FolderID        int64     `json:"folderId"`
	Path            string    `json:"path"`
	NumFiles        int       `json:"numFiles"`
	TotalSizeBytes  int64     `json:"totalSizeBytes"`
	LastScannedTime time.Time `json:"lastScannedTime"`
}

// IsValid reports whether the folder can be persisted.
func (f Folder) IsValid() bool {
	return f.Path != "" && f.NumFiles >= 0 && f.FolderID >= 0
}

// TrackInfo holds everything the catalogue knows about one audio file.
// Duration is in milliseconds.
type TrackInfo struct {
	TrackID        int64     `json:"trackId"`
	FolderID       int64     `json:"folderId"`
	FilePath       string    `json:"filePath"`
	FSLastModified time.Time `json:"fsLastModified"`
	FileSizeBytes  int64     `json:"fileSizeBytes"`
	DateAdded      time.Time `json:"dateAdded"`
	LastScanned    time.Time `json:"lastScanned"`

	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	AlbumArtist string  `json:"albumArtist"`
	TrackNumber int     `json:"trackNumber"`
	DiscNumber  int     `json:"discNumber"`
	Year        int     `json:"year"`
	TagIDs      []int64 `json:"tagIds,omitempty"`

	Duration   int64  `json:"duration"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Bitrate    int    `json:"bitrate"`
	CodecName  string `json:"codecName"`

	BPM           float64 `json:"bpm"`
	KeyString     string  `json:"keyString"`
	BeatLocations []int64 `json:"beatLocations,omitempty"` // ms offsets

	Rating      int       `json:"rating"`
	LikedStatus int       `json:"likedStatus"`
	PlayCount   int       `json:"playCount"`
	LastPlayed  time.Time `json:"lastPlayed"`

	ContentHash string `json:"contentHash"`
	Notes       string `json:"notes"`
	IsMissing   bool   `json:"isMissing"`
}

// NewTrackInfo returns a TrackInfo with unset identifiers.
func NewTrackInfo() TrackInfo {
	return TrackInfo{TrackID: UnsetID, FolderID: UnsetID}
}

// NeedsRescan reports whether the file on disk differs from what was catalogued.
func (t TrackInfo) NeedsRescan(modTime time.Time, size int64) bool {
	return t.IsMissing || t.FSLastModified.UnixMilli() != modTime.UnixMilli() || t.FileSizeBytes != size
}

// Tag is an interned tag name
type Tag struct {
	TagID int64  `json:"tagId"`
	Name  string `json:"name"`
}
