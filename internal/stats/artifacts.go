package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"

	"cgpde/internal/cgp"
	"cgpde/internal/model"
)

const (
	runFile         = "run.json"
	configFile      = "config.yaml"
	summaryFile     = "summary.json"
	foldsFile       = "folds.csv"
	generationsFile = "generations.csv"
	resultsFile     = "results.csv"
)

// ResultRow is one line of results.csv. Run numbers restart at 0 for every
// mode.
type ResultRow struct {
	Mode        string  `csv:"mode"`
	Run         int     `csv:"run"`
	Fitness     float64 `csv:"fitness"`
	Generations int     `csv:"generations"`
	ActiveNodes int     `csv:"active_nodes"`
}

type RunArtifacts struct {
	Run         model.RunRecord
	Folds       []model.FoldResult
	Diagnostics []model.GenerationDiagnostics
	// Best holds the chromosome with the lowest test fitness per mode.
	Best map[string]*cgp.Chromosome
}

// ResultRows flattens fold results into results.csv rows.
func ResultRows(results []model.FoldResult) []ResultRow {
	counts := make(map[string]int)
	rows := make([]ResultRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, ResultRow{
			Mode:        r.Mode,
			Run:         counts[r.Mode],
			Fitness:     r.TestFitness,
			Generations: r.Generation,
			ActiveNodes: r.ActiveNodes,
		})
		counts[r.Mode]++
	}
	return rows
}

// WriteRunArtifacts writes every artifact of a run under baseDir/<run id>
// and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if artifacts.Run.Config != "" {
		if err := os.WriteFile(filepath.Join(runDir, configFile), []byte(artifacts.Run.Config), 0o644); err != nil {
			return "", err
		}
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), Summarize(artifacts.Folds)); err != nil {
		return "", err
	}
	folds := artifacts.Folds
	if folds == nil {
		folds = []model.FoldResult{}
	}
	if err := writeCSV(filepath.Join(runDir, foldsFile), &folds); err != nil {
		return "", fmt.Errorf("writing %s: %w", foldsFile, err)
	}
	diagnostics := artifacts.Diagnostics
	if diagnostics == nil {
		diagnostics = []model.GenerationDiagnostics{}
	}
	if err := writeCSV(filepath.Join(runDir, generationsFile), &diagnostics); err != nil {
		return "", fmt.Errorf("writing %s: %w", generationsFile, err)
	}
	rows := ResultRows(artifacts.Folds)
	if err := writeCSV(filepath.Join(runDir, resultsFile), &rows); err != nil {
		return "", fmt.Errorf("writing %s: %w", resultsFile, err)
	}

	modes := make([]string, 0, len(artifacts.Best))
	for mode := range artifacts.Best {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		if err := writeBest(runDir, mode, artifacts.Best[mode]); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// BestChromosomeFile is the name of the persisted best chromosome of mode.
func BestChromosomeFile(mode string) string { return "best_" + mode + ".chromo" }

// BestDotFile is the name of the Graphviz rendering of mode's best chromosome.
func BestDotFile(mode string) string { return "best_" + mode + ".dot" }

func writeBest(runDir, mode string, c *cgp.Chromosome) error {
	if c == nil {
		return nil
	}
	if err := c.SaveFile(filepath.Join(runDir, BestChromosomeFile(mode))); err != nil {
		return fmt.Errorf("writing best %s chromosome: %w", mode, err)
	}
	f, err := os.Create(filepath.Join(runDir, BestDotFile(mode)))
	if err != nil {
		return err
	}
	if err := c.WriteDot(f, true); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing best %s dot: %w", mode, err)
	}
	return f.Close()
}

func ReadRun(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

func ReadSummary(baseDir, runID string) ([]ModeSummary, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, summaryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var summaries []ModeSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, false, err
	}
	return summaries, true, nil
}

func ReadFoldResults(baseDir, runID string) ([]model.FoldResult, bool, error) {
	var results []model.FoldResult
	ok, err := readCSV(filepath.Join(baseDir, runID, foldsFile), &results)
	return results, ok, err
}

func ReadResultRows(baseDir, runID string) ([]ResultRow, bool, error) {
	var rows []ResultRow
	ok, err := readCSV(filepath.Join(baseDir, runID, resultsFile), &rows)
	return rows, ok, err
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readCSV(filepath.Join(baseDir, runID, generationsFile), &diagnostics)
	return diagnostics, ok, err
}

// ExportRunArtifacts copies every file of a run directory to outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(rows, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readCSV(path string, out any) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return true, nil
		}
		return false, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
