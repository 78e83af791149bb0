package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const runIndexFile = "run_index.json"

type RunIndexEntry struct {
	RunID        string        `json:"run_id"`
	Name         string        `json:"name,omitempty"`
	Dataset      string        `json:"dataset"`
	Repetitions  int           `json:"repetitions"`
	Folds        int           `json:"folds"`
	Generations  int           `json:"generations"`
	Modes        []string      `json:"modes"`
	Summaries    []ModeSummary `json:"summaries,omitempty"`
	CreatedAtUTC string        `json:"created_at_utc"`
}

// AppendRunIndex adds entry to baseDir/run_index.json, replacing any entry
// with the same run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return errors.New("run index entry requires a run id")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range index {
		if existing.RunID == entry.RunID {
			index[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, entry)
	}
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs, newest first. Among equal
// timestamps the later appended entry comes first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	// Reverse first so the stable sort keeps later appends ahead on ties.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// LatestRun returns the newest indexed run.
func LatestRun(baseDir string) (RunIndexEntry, bool, error) {
	entries, err := ListRunIndex(baseDir)
	if err != nil || len(entries) == 0 {
		return RunIndexEntry{}, false, err
	}
	return entries[0], true, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", runIndexFile, err)
	}
	return entries, nil
}
