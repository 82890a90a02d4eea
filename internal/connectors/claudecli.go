package connectors

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rekall-kb/rekall/internal/idgen"
	"github.com/rekall-kb/rekall/internal/types"
)

// claudeURLPattern matches every http(s) URL in a message's text
// content, mirroring the teacher's regex-based extraction style
// in internal/extractor/regex.go rather than a full JSON schema walk —
// conversation transcripts vary tool-by-tool and a regex over the raw
// line is resilient to that variance.
var claudeURLPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// claudeLine is the subset of a Claude Code conversation JSONL record
// this connector reads. Conversation files are one JSON object per line;
// unrecognized fields are ignored by json.Unmarshal.
type claudeLine struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Content any `json:"content"`
	} `json:"message"`
}

// ClaudeCLI scans a per-project directory of line-delimited JSON
// conversation files and emits one InboxEntry per http(s) URL found in
// the plain-text content of an assistant message. Tool-call structure
// is not inspected, so a URL the assistant only mentions is captured
// too, and UserQuery is left empty.
type ClaudeCLI struct {
	// RootDir is the base directory under which each project has its own
	// conversation-log subdirectory (e.g. ~/.claude/projects).
	RootDir string
}

var _ Connector = (*ClaudeCLI)(nil)

func (c *ClaudeCLI) Name() string { return "claude_cli" }

func (c *ClaudeCLI) Available() bool {
	info, err := os.Stat(c.RootDir)
	return err == nil && info.IsDir()
}

func (c *ClaudeCLI) ListHistorySources() ([]HistorySource, error) {
	entries, err := os.ReadDir(c.RootDir)
	if err != nil {
		return nil, err
	}
	var sources []HistorySource
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sources = append(sources, HistorySource{
			Connector: c.Name(),
			Path:      filepath.Join(c.RootDir, e.Name()),
			Project:   e.Name(),
		})
	}
	return sources, nil
}

// Extract reads every .jsonl file under source.Path modified after
// sinceMarker (an RFC3339 timestamp, empty meaning "the beginning"),
// emitting one InboxEntry per URL found in an assistant message.
// Extract itself marks nothing processed; that happens only once the
// enrichment job commits (spec.md §4.7's crash-safety contract).
func (c *ClaudeCLI) Extract(ctx context.Context, source HistorySource, sinceMarker string) ([]*types.InboxEntry, error) {
	var since time.Time
	if sinceMarker != "" {
		if t, err := time.Parse(time.RFC3339, sinceMarker); err == nil {
			since = t
		}
	}

	files, err := filepath.Glob(filepath.Join(source.Path, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []*types.InboxEntry
	for _, path := range files {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().After(since) {
			continue
		}
		entries, err := extractFromFile(path, source.Project)
		if err != nil {
			continue
		}
		out = append(out, entries...)
	}
	return out, nil
}

func extractFromFile(path, project string) ([]*types.InboxEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conversationID := filepath.Base(path)
	var out []*types.InboxEntry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line claudeLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != "assistant" {
			continue
		}
		text, ok := line.Message.Content.(string)
		if !ok {
			continue
		}
		urls := claudeURLPattern.FindAllString(text, -1)
		for _, u := range urls {
			capturedAt := time.Now().UTC()
			if t, err := time.Parse(time.RFC3339, line.Timestamp); err == nil {
				capturedAt = t
			}
			entry := &types.InboxEntry{
				ID:               idgen.New(),
				URL:              u,
				CLISource:        "claude_cli",
				Project:          project,
				ConversationID:   conversationID,
				CapturedAt:       capturedAt,
				ImportSource:     types.ImportRealtime,
				IsValid:          true,
			}
			if err := ValidateURL(u); err != nil {
				entry.IsValid = false
				entry.ValidationError = err.Error()
			}
			out = append(out, entry)
		}
	}
	return out, scanner.Err()
}

func (c *ClaudeCLI) ProvideMarker(source HistorySource) (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}
