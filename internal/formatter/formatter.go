// package formatter renders party queues and task results as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/multify/internal/queue"
	"github.com/desertthunder/multify/internal/shared"
	"github.com/desertthunder/multify/internal/tasks"
)

// Supported output formats.
const (
	FormatText     = "txt"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// QueueExport is a party queue ranked for one viewer.
type QueueExport struct {
	PartyID   string              `json:"party_id"`
	PartyName string              `json:"party_name,omitempty"`
	Code      string              `json:"code,omitempty"`
	Viewer    string              `json:"viewer,omitempty"`
	Tracks    []queue.RankedTrack `json:"tracks"`
}

func (q *QueueExport) title() string {
	if q.PartyName == "" {
		return q.PartyID
	}
	return q.PartyName
}

// Artists joins track artists for display.
func Artists(artists []string) string {
	if len(artists) == 0 {
		return "Unknown"
	}
	return strings.Join(artists, ", ")
}

// voteMark shows the viewer's own markers: + for a like, - for a dislike.
func voteMark(t queue.RankedTrack) string {
	switch {
	case t.Liked && t.Disliked:
		return "+-"
	case t.Liked:
		return "+"
	case t.Disliked:
		return "-"
	default:
		return ""
	}
}

// QueueToCSV converts a queue to CSV format with columns: Rank, ID, Name, Artists, Album, Likes, Dislikes, Score, AddedBy
func QueueToCSV(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Rank", "ID", "Name", "Artists", "Album", "Likes", "Dislikes", "Score", "AddedBy"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range export.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.ID,
			track.Name,
			strings.Join(track.Artists, "; "),
			track.Album,
			strconv.Itoa(track.Likes),
			strconv.Itoa(track.Dislikes),
			strconv.Itoa(track.Score),
			track.AddedBy,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// QueueToMarkdown converts a queue to a Markdown table
func QueueToMarkdown(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.title())
	if export.Code != "" {
		fmt.Fprintf(&buf, "**Code**: %s\n", export.Code)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(export.Tracks))

	if len(export.Tracks) == 0 {
		buf.WriteString("_The queue is empty._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Track | Artists | Score | Likes | Dislikes | You |\n")
	buf.WriteString("|---|-------|---------|-------|-------|----------|-----|\n")
	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "| %d | %s | %s | %d | %d | %d | %s |\n",
			i+1,
			escapeCell(track.Name),
			escapeCell(Artists(track.Artists)),
			track.Score,
			track.Likes,
			track.Dislikes,
			voteMark(track),
		)
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// QueueToText converts a queue to plain text format
func QueueToText(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Party: %s\n", export.title())
	if export.Code != "" {
		fmt.Fprintf(&buf, "Code: %s\n", export.Code)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		mark := voteMark(track)
		if mark != "" {
			mark = " [" + mark + "]"
		}
		fmt.Fprintf(&buf, "%d. %s - %s (%d: +%d/-%d)%s\n",
			i+1, Artists(track.Artists), track.Name, track.Score, track.Likes, track.Dislikes, mark)
	}

	return buf.Bytes(), nil
}

// RenderQueue renders a queue in format. An empty format means plain text.
func RenderQueue(export *QueueExport, format string) ([]byte, error) {
	switch format {
	case "", FormatText, "text":
		return QueueToText(export)
	case FormatMarkdown, "md":
		return QueueToMarkdown(export)
	case FormatCSV:
		return QueueToCSV(export)
	case FormatJSON:
		return shared.MarshalJSON(export, true)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteQueueExport renders a queue to path.
//
// Defaults to {party id}_queue.{ext} as the filename.
func WriteQueueExport(export *QueueExport, format, path string) (string, error) {
	data, err := RenderQueue(export, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("%s_queue.%s", export.PartyID, extension(format))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write queue file: %w", err)
	}
	return path, nil
}

func extension(format string) string {
	switch format {
	case FormatMarkdown, "md":
		return "md"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

// ImportSummary renders the outcome of a playlist import as plain text, listing failed tracks.
func ImportSummary(result *tasks.ImportResult) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist %s -> party %s\n", result.PlaylistID, result.PartyID)
	fmt.Fprintf(&buf, "Added: %d  Skipped: %d  Failed: %d  (of %d)\n",
		result.Added, result.Skipped, result.Failed, result.Total)

	for _, res := range result.Results {
		if res.Status != tasks.StatusFailed {
			continue
		}
		fmt.Fprintf(&buf, "  x %s - %s: %v\n", Artists(res.Track.Artists), res.Track.Name, res.Error)
	}

	return buf.Bytes()
}

// WriteImportManifest writes the import result as JSON to path.
func WriteImportManifest(result *tasks.ImportResult, path string) error {
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// CorrectionsToText renders recount corrections, one line per track.
func CorrectionsToText(corrections []queue.Correction) []byte {
	var buf bytes.Buffer
	if len(corrections) == 0 {
		buf.WriteString("All vote counters match their markers.\n")
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Corrected %d track(s):\n", len(corrections))
	for _, c := range corrections {
		fmt.Fprintf(&buf, "  %s (%s): likes %d -> %d, dislikes %d -> %d\n",
			c.Name, c.TrackID, c.StoredLikes, c.CountedLikes, c.StoredDislikes, c.CountedDislikes)
	}
	return buf.Bytes()
}
