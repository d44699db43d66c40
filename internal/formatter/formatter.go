// package formatter renders persisted queue snapshots in various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// Format names an export format.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "text"
	JSON     Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{CSV, Markdown, Text, JSON}

// ParseFormat resolves a format name. "md" and "txt" are accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "text", "txt", "":
		return Text, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, name)
}

// Extension returns the file extension used for f.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return ".md"
	case Text:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// QueueExport is a snapshot of the pending queue as loaded from a store.
type QueueExport struct {
	SavedAt time.Time              `json:"saved_at"`
	Entries []models.SnapshotEntry `json:"entries"`
}

// ExportToCSV converts a QueueExport to CSV format with columns: Position, Track ID, Name, Likes, Dislikes, Best Link
func ExportToCSV(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Track ID", "Name", "Likes", "Dislikes", "Best Link"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range export.Entries {
		record := []string{
			strconv.Itoa(e.Position),
			e.TrackID,
			e.Name,
			strconv.Itoa(len(e.Likers)),
			strconv.Itoa(len(e.Dislikers)),
			bestLink(e),
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

// ExportToMarkdown converts a QueueExport to a Markdown document with a table of pending tracks
func ExportToMarkdown(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Queue\n\n")
	if !export.SavedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("**Saved**: %s\n", export.SavedAt.Format(time.RFC3339)))
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(export.Entries)))

	if len(export.Entries) == 0 {
		buf.WriteString("_The queue is empty._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Track | Likes | Dislikes |\n")
	buf.WriteString("|---|-------|-------|----------|\n")
	for _, e := range export.Entries {
		name := strings.ReplaceAll(e.Name, "|", "\\|")
		buf.WriteString(fmt.Sprintf("| %d | %s | %d | %d |\n", e.Position, name, len(e.Likers), len(e.Dislikers)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a QueueExport to plain text format
func ExportToText(export *QueueExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n", len(export.Entries)))
	if !export.SavedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("Saved: %s\n", export.SavedAt.Format(time.RFC3339)))
	}
	buf.WriteString("\n")

	for _, e := range export.Entries {
		buf.WriteString(fmt.Sprintf("%d. %s (+%d/-%d)\n", e.Position, e.Name, len(e.Likers), len(e.Dislikers)))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a QueueExport to indented JSON
func ExportToJSON(export *QueueExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Render converts export to f.
func Render(export *QueueExport, f Format) ([]byte, error) {
	switch f {
	case CSV:
		return ExportToCSV(export)
	case Markdown:
		return ExportToMarkdown(export)
	case Text:
		return ExportToText(export)
	case JSON:
		return ExportToJSON(export)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
}

// Write renders export in format f to w.
func Write(w io.Writer, export *QueueExport, f Format) error {
	data, err := Render(export, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// WriteFile exports to path, defaulting to queue{ext} when path is empty. It returns the path written.
func WriteFile(export *QueueExport, f Format, path string) (string, error) {
	if path == "" {
		path = "queue" + f.Extension()
	}

	data, err := Render(export, f)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}

	return path, nil
}

// HistoryEntry is one row of the snapshot log.
type HistoryEntry struct {
	ID      int64
	Entries int
	SavedAt time.Time
}

// WriteHistory prints the snapshot log as aligned text.
func WriteHistory(w io.Writer, history []HistoryEntry) error {
	if len(history) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots saved yet.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%-6s %-8s %s\n", "ID", "TRACKS", "SAVED"); err != nil {
		return err
	}
	for _, h := range history {
		if _, err := fmt.Fprintf(w, "%-6d %-8d %s\n", h.ID, h.Entries, h.SavedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

// bestLink returns the first candidate link, which the catalog orders by bitrate.
func bestLink(e models.SnapshotEntry) string {
	if len(e.Candidates) == 0 {
		return ""
	}
	return e.Candidates[0].URL
}
