package navigation

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"mixdeck/pkg/models"
)

// FormatDuration renders milliseconds as m:ss or h:mm:ss.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func formatBPM(bpm float64) string {
	switch {
	case bpm < 0:
		return "?"
	case bpm == 0:
		return ""
	default:
		return strconv.FormatFloat(bpm, 'f', 1, 64)
	}
}

func likedText(status int) string {
	switch status {
	case models.Liked:
		return "♥"
	case models.Disliked:
		return "✗"
	default:
		return ""
	}
}

// TrackCellText renders one track column.
func TrackCellText(t models.TrackInfo, col models.ColumnID) string {
	switch col {
	case models.ColumnTitle:
		if t.Title == "" {
			return filepath.Base(t.FilePath)
		}
		return t.Title
	case models.ColumnArtist:
		return t.Artist
	case models.ColumnAlbum:
		return t.Album
	case models.ColumnAlbumArtist:
		return t.AlbumArtist
	case models.ColumnTrackNumber:
		return formatInt(t.TrackNumber)
	case models.ColumnDiscNumber:
		return formatInt(t.DiscNumber)
	case models.ColumnYear:
		return formatInt(t.Year)
	case models.ColumnDuration:
		return FormatDuration(t.Duration)
	case models.ColumnBPM:
		return formatBPM(t.BPM)
	case models.ColumnKey:
		return t.KeyString
	case models.ColumnRating:
		return formatInt(t.Rating)
	case models.ColumnLiked:
		return likedText(t.LikedStatus)
	case models.ColumnPlayCount:
		return formatInt(t.PlayCount)
	case models.ColumnLastPlayed:
		return formatTime(t.LastPlayed)
	case models.ColumnDateAdded:
		return formatTime(t.DateAdded)
	case models.ColumnFilePath:
		return t.FilePath
	case models.ColumnCodec:
		return t.CodecName
	case models.ColumnBitrate:
		if t.Bitrate == 0 {
			return ""
		}
		return fmt.Sprintf("%d kbps", t.Bitrate)
	case models.ColumnSampleRate:
		if t.SampleRate == 0 {
			return ""
		}
		return fmt.Sprintf("%d Hz", t.SampleRate)
	}
	return ""
}
