// package formatter renders playlists, sync groups and run history as CSV, Markdown, plain text, JSON or YAML
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// Format is an export encoding.
type Format string

const (
	JSON     Format = "json"
	YAML     Format = "yaml"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "text"
)

// Formats lists every supported format.
var Formats = []Format{JSON, YAML, CSV, Markdown, Text}

// ParseFormat accepts a format name or its usual file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "text", "txt":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case YAML:
		return ".yaml"
	case CSV:
		return ".csv"
	case Markdown:
		return ".md"
	case Text:
		return ".txt"
	default:
		return ".json"
	}
}

// PlaylistExport is a playlist together with its tracks.
type PlaylistExport struct {
	Playlist models.Playlist `json:"playlist" yaml:"playlist"`
	Tracks   []models.Track  `json:"tracks" yaml:"tracks"`
}

// Playlist encodes export in format.
func Playlist(format Format, export PlaylistExport) ([]byte, error) {
	switch format {
	case JSON:
		return shared.MarshalJSON(export, true)
	case YAML:
		return shared.MarshalYAML(export)
	case CSV:
		return TracksToCSV(export.Tracks)
	case Markdown:
		return PlaylistToMarkdown(export), nil
	case Text:
		return PlaylistToText(export), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
}

// TracksToCSV writes columns ID, Title, Artists, Album, Duration, ISRC.
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	rows := make([][]string, 0, len(tracks))
	for _, track := range tracks {
		rows = append(rows, []string{
			track.ID,
			track.Title,
			track.Artist(),
			track.Album,
			FormatDuration(track.DurationMS),
			track.ISRC,
		})
	}
	return writeCSV([]string{"ID", "Title", "Artists", "Album", "Duration", "ISRC"}, rows)
}

// PlaylistToMarkdown renders a heading, a track count and a numbered track list.
func PlaylistToMarkdown(export PlaylistExport) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)
	fmt.Fprintf(&buf, "**Service**: %s\n", export.Playlist.Service.DisplayName())
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(export.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		durationPart := ""
		if d := FormatDuration(track.DurationMS); d != "" {
			durationPart = fmt.Sprintf(" [%s]", d)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s%s\n", i+1, track.Artist(), track.Title, albumPart, durationPart)
	}

	return buf.Bytes()
}

// PlaylistToText renders one "artist - title" line per track.
func PlaylistToText(export PlaylistExport) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))
	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist(), track.Title)
	}

	return buf.Bytes()
}

// Groups encodes sync groups in format.
func Groups(format Format, groups []models.SyncGroup) ([]byte, error) {
	switch format {
	case JSON:
		return shared.MarshalJSON(groups, true)
	case YAML:
		return shared.MarshalYAML(groups)
	case CSV:
		return GroupsToCSV(groups)
	case Markdown:
		return GroupsToMarkdown(groups), nil
	case Text:
		return GroupsToText(groups), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
}

// GroupsToCSV writes one row per group with a column per service.
func GroupsToCSV(groups []models.SyncGroup) ([]byte, error) {
	headers := []string{"ID", "Name", "Primary"}
	for _, service := range models.ServiceTypes {
		headers = append(headers, string(service))
	}

	rows := make([][]string, 0, len(groups))
	for _, group := range groups {
		row := []string{group.ID, group.Name, string(group.PrimaryService)}
		for _, service := range models.ServiceTypes {
			row = append(row, group.Playlists[service])
		}
		rows = append(rows, row)
	}
	return writeCSV(headers, rows)
}

// GroupsToMarkdown renders a section per group listing its playlists.
func GroupsToMarkdown(groups []models.SyncGroup) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Sync Groups\n\n")
	if len(groups) == 0 {
		buf.WriteString("_No sync groups._\n")
		return buf.Bytes()
	}

	for _, group := range groups {
		fmt.Fprintf(&buf, "## %s\n\n", group.Name)
		fmt.Fprintf(&buf, "- **ID**: `%s`\n", group.ID)
		for _, service := range sortedServices(group) {
			role := "mirror"
			if service == group.PrimaryService {
				role = "primary"
			}
			fmt.Fprintf(&buf, "- **%s** (%s): `%s`\n", service.DisplayName(), role, group.Playlists[service])
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// GroupsToText renders an indented listing of groups.
func GroupsToText(groups []models.SyncGroup) []byte {
	var buf bytes.Buffer

	for _, group := range groups {
		fmt.Fprintf(&buf, "%s [%s]\n", group.Name, group.ID)
		for _, service := range sortedServices(group) {
			marker := " "
			if service == group.PrimaryService {
				marker = "*"
			}
			fmt.Fprintf(&buf, "  %s %-14s %s\n", marker, service.DisplayName(), group.Playlists[service])
		}
	}

	return buf.Bytes()
}

// Runs encodes sync run history in format.
func Runs(format Format, runs []models.SyncRun) ([]byte, error) {
	switch format {
	case JSON:
		return shared.MarshalJSON(runs, true)
	case YAML:
		return shared.MarshalYAML(runs)
	case CSV:
		return RunsToCSV(runs)
	case Markdown:
		return RunsToMarkdown(runs), nil
	case Text:
		return RunsToText(runs), nil
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
}

// RunsToCSV writes one row per run, timestamps in RFC 3339.
func RunsToCSV(runs []models.SyncRun) ([]byte, error) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			strconv.Itoa(run.Sequence),
			run.GroupID,
			string(run.Status),
			strconv.Itoa(run.Targets),
			strconv.Itoa(run.FailedTargets),
			run.Digest,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).String(),
			run.Message,
		})
	}
	headers := []string{"Sequence", "Group", "Status", "Targets", "Failed", "Digest", "Started", "Took", "Message"}
	return writeCSV(headers, rows)
}

// RunsToMarkdown renders run history as a table.
func RunsToMarkdown(runs []models.SyncRun) []byte {
	var buf bytes.Buffer

	buf.WriteString("| # | Status | Targets | Failed | Started | Message |\n")
	buf.WriteString("|---|--------|---------|--------|---------|---------|\n")
	for _, run := range runs {
		fmt.Fprintf(&buf, "| %d | %s | %d | %d | %s | %s |\n",
			run.Sequence, run.Status, run.Targets, run.FailedTargets,
			run.StartedAt.UTC().Format(time.RFC3339), strings.ReplaceAll(run.Message, "|", "\\|"))
	}

	return buf.Bytes()
}

// RunsToText renders one line per run.
func RunsToText(runs []models.SyncRun) []byte {
	var buf bytes.Buffer

	for _, run := range runs {
		fmt.Fprintf(&buf, "#%d %s %-9s %d/%d mirrors ok",
			run.Sequence, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Status,
			run.Targets-run.FailedTargets, run.Targets)
		if run.Message != "" {
			fmt.Fprintf(&buf, "  %s", run.Message)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// FormatDuration renders milliseconds as m:ss, or an empty string when unknown.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return ""
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func sortedServices(group models.SyncGroup) []models.ServiceType {
	services := make([]models.ServiceType, 0, len(group.Playlists))
	for service := range group.Playlists {
		services = append(services, service)
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i] == group.PrimaryService {
			return true
		}
		if services[j] == group.PrimaryService {
			return false
		}
		return services[i] < services[j]
	})
	return services
}
