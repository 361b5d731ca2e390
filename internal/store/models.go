// SPDX-License-Identifier: MIT
package store

import "time"

// TimestampLayout is the wall-clock format stored in the catalog. Fixed
// microsecond width keeps string comparison equivalent to time comparison.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// DateLayout is the local-date key format.
const DateLayout = "2006-01-02"

// Storage tiers for a screenshot.
const (
	StorageLive     = "live"
	StorageArchived = "archived"
)

// FormatTimestamp renders t in the catalog timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a catalog timestamp, tolerating missing fractions.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
}

// Monitor describes one physical display in the current topology.
type Monitor struct {
	Name   string
	Index  int
	X      int
	Y      int
	Width  int
	Height int
}

// Screenshot is one accepted capture tick covering the full desktop.
type Screenshot struct {
	ID              int64
	Timestamp       time.Time
	Date            string
	Width           int
	Height          int
	FileSize        int64
	Similarity      float64
	StorageType     string
	SegmentPath     string // empty while live
	SegmentOffsetMS int64
	ThumbPath       string
}

// MonitorCapture is one monitor's frame within a screenshot. After archival
// Filepath is empty and the segment reference is set; never both.
type MonitorCapture struct {
	ID              int64
	ScreenshotID    int64
	MonitorName     string
	MonitorIndex    int
	Filepath        string
	SegmentPath     string
	SegmentOffsetMS int64
	X               int
	Y               int
	Width           int
	Height          int
}

// Archived reports whether this capture has been re-pointed into a segment.
func (mc *MonitorCapture) Archived() bool { return mc.SegmentPath != "" }

// OCRResult is per-monitor extracted text.
type OCRResult struct {
	ID               int64
	ScreenshotID     int64
	MonitorCaptureID int64
	Text             string
	Language         string
	Confidence       float64
}

// OCRWord is a word-level bounding box in original image coordinates.
type OCRWord struct {
	ID               int64
	OCRResultID      int64
	MonitorCaptureID int64
	Word             string
	Left             int
	Top              int
	Width            int
	Height           int
	Confidence       float64
}

// Embedding is one stored chunk vector (raw little-endian float32 bytes).
type Embedding struct {
	ID           int64
	ScreenshotID int64
	Vector       []byte
	Model        string
	Dimensions   int
	TextHash     string
}

// VideoSegment is one encoded H.265 file covering [StartTime, EndTime) of a
// single monitor.
type VideoSegment struct {
	ID           int64
	Date         string
	MonitorIndex int
	Filepath     string
	StartTime    time.Time
	EndTime      time.Time
	FrameCount   int
	FileSize     int64
}

// WindowEvent is the active-window identity at capture time.
type WindowEvent struct {
	ID            int64
	ScreenshotID  int64
	Timestamp     time.Time
	AppClass      string
	AppName       string
	WindowTitle   string
	DesktopFile   string
	PID           int
	BrowserDomain string
}

// DaySummary is the cached AI narrative for one date.
type DaySummary struct {
	Date          string
	SummaryText   string
	SessionLabels string
	Model         string
	CreatedAt     time.Time
	EventCount    int
}

// FTSRow is one raw full-text hit; Rank is bm25 where smaller is better.
type FTSRow struct {
	ScreenshotID int64
	Text         string
	Rank         float64
	Snippet      string
}

// Stats summarises the catalog for the status command.
type Stats struct {
	TotalScreenshots    int64
	LiveScreenshots     int64
	ArchivedScreenshots int64
	OCRResults          int64
	Embeddings          int64
	VideoSegments       int64
	StorageBytes        int64
}
