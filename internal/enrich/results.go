package enrich

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoResults is returned by Latest when no result table exists yet.
var ErrNoResults = errors.New("enrich: no result tables")

// emptyMarker is the single row written when a run produced zero records,
// so consumers can distinguish "ran but empty" from "nothing ran".
const emptyMarker = "# no clips were produced"

// resultPrefix and resultExt name result table files:
// clip_titles_<timestamp>.csv.
const (
	resultPrefix = "clip_titles_"
	resultExt    = ".csv"
	timeLayout   = "2006-01-02_15-04-05"
)

// ResultTable is a parsed result table.
type ResultTable struct {
	Path    string
	Records []TitleRecord
	// Message carries the marker-row text for an empty run.
	Message string
}

// ResultStore reads and writes per-run result tables keyed by timestamp.
type ResultStore struct {
	dir string
}

// NewResultStore creates a ResultStore rooted at dir, creating it if needed.
func NewResultStore(dir string) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &ResultStore{dir: dir}, nil
}

// Write persists the records of one run, identified by its timestamp, and
// returns the table path. A run with zero records gets a single explanatory
// marker row instead of a header-only file.
func (s *ResultStore) Write(records []TitleRecord, at time.Time) (string, error) {
	path := filepath.Join(s.dir, resultPrefix+at.Format(timeLayout)+resultExt)

	f, err := os.Create(path) // #nosec G304 - path built from our own naming scheme
	if err != nil {
		return "", fmt.Errorf("create result table: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "title"}); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	if len(records) == 0 {
		if err := w.Write([]string{emptyMarker}); err != nil {
			return "", fmt.Errorf("write marker row: %w", err)
		}
	}
	for _, r := range records {
		if err := w.Write([]string{r.ArtifactName, r.Title}); err != nil {
			return "", fmt.Errorf("write record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush result table: %w", err)
	}
	return path, nil
}

// Latest parses the most recent result table.
func (s *ResultStore) Latest() (*ResultTable, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, resultPrefix) && strings.HasSuffix(name, resultExt) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoResults
	}
	// Timestamped names sort chronologically.
	sort.Strings(names)
	return s.parse(filepath.Join(s.dir, names[len(names)-1]))
}

// parse reads one table, surfacing a marker row as Message.
func (s *ResultStore) parse(path string) (*ResultTable, error) {
	f, err := os.Open(path) // #nosec G304 - path enumerated from the results dir
	if err != nil {
		return nil, fmt.Errorf("open result table: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse result table: %w", err)
	}

	table := &ResultTable{Path: path}
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue // header
		}
		if strings.HasPrefix(row[0], "#") {
			table.Message = strings.TrimSpace(strings.TrimPrefix(row[0], "#"))
			continue
		}
		if len(row) >= 2 {
			table.Records = append(table.Records, TitleRecord{
				ArtifactName: row[0],
				Title:        row[1],
			})
		}
	}
	return table, nil
}
