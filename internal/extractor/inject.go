package extractor

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gaia-strings/internal/report"
	"gaia-strings/internal/stringtable"
)

// InjectSummary describes an injection run.
type InjectSummary struct {
	Root         string `json:"root"`
	TablePath    string `json:"table_path"`
	FilesFound   int    `json:"files_found"`
	FilesChanged int    `json:"files_changed"`
	LinesChanged int    `json:"lines_changed"`
	Rejected     int    `json:"rejected"`
	Failed       int    `json:"failed"`
}

// Inject writes the content of the table at tablePath back into every
// matching line of the listings under root. Only changed files are
// rewritten, each atomically. Files that cannot be read are skipped; files
// that cannot be written fail the run after all others were processed.
func (e *Extractor) Inject(root, tablePath string) (*InjectSummary, error) {
	start := time.Now()

	resolved, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	table, err := stringtable.Load(e.fs, tablePath)
	if err != nil {
		return nil, err
	}
	table = stringtable.Canonical(table)
	report.Info(e.reporter, "Loaded string table", "path", tablePath, "keys", len(table))

	files := e.walker.Walk(resolved)
	e.metrics.FilesDiscovered.Add(float64(len(files)))
	report.Info(e.reporter, "Discovered files", "count", len(files), "root", resolved)

	sum := &InjectSummary{Root: resolved, TablePath: tablePath, FilesFound: len(files)}
	for _, path := range files {
		result, err := e.parser.Parse(path)
		if err != nil {
			e.metrics.FilesScanned.WithLabelValues("error").Inc()
			report.Warn(e.reporter, err, "Error reading file", "path", path)
			continue
		}
		e.metrics.FilesScanned.WithLabelValues("ok").Inc()

		rec, err := e.parser.Reconstruct(result, table)
		if err != nil {
			sum.Failed++
			report.Error(e.reporter, err, "Failed to rebuild file", "path", path)
			continue
		}
		if len(rec.Rejected) > 0 {
			sum.Rejected += len(rec.Rejected)
			report.Warn(e.reporter, nil, "Skipped content with line terminators",
				"path", path, "ids", strings.Join(rec.Rejected, ","))
		}
		if rec.Changed == 0 {
			continue
		}

		info, err := e.fs.Stat(path)
		if err != nil {
			sum.Failed++
			report.Error(e.reporter, err, "Failed to stat file", "path", path)
			continue
		}
		if err := stringtable.WriteFileAtomic(e.fs, path, rec.Data, info.Mode().Perm()); err != nil {
			sum.Failed++
			report.Error(e.reporter, err, "Failed to write file", "path", path)
			continue
		}

		sum.FilesChanged++
		sum.LinesChanged += rec.Changed
		e.metrics.LinesInjected.Add(float64(rec.Changed))
		report.Info(e.reporter, "Injected strings", "file", path, "count", rec.Changed)
	}

	report.Info(e.reporter, "Injection complete",
		"files_changed", sum.FilesChanged,
		"lines_changed", sum.LinesChanged,
		"rejected", sum.Rejected,
		"failed", sum.Failed,
	)

	if sum.Failed > 0 {
		return sum, fmt.Errorf("inject: %d files could not be rewritten", sum.Failed)
	}

	e.metrics.RunDuration.WithLabelValues("inject").Observe(time.Since(start).Seconds())
	e.metrics.LastSuccessfulRun.WithLabelValues("inject").SetToCurrentTime()
	return sum, nil
}
