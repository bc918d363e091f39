// Package extractor runs the string-table pipeline: discover listing files,
// parse them in discovery order, fold the results into one table and
// persist it.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gaia-strings/internal/filewalker"
	"gaia-strings/internal/metrics"
	"gaia-strings/internal/parser"
	"gaia-strings/internal/report"
	"gaia-strings/internal/stringtable"
	"gaia-strings/internal/textutil"

	"github.com/spf13/afero"
)

// previewLen bounds how much content debug events carry.
const previewLen = 40

// Options configures an Extractor. Zero values fall back to the real
// filesystem, the .asm parser, a silent reporter and fresh metrics.
type Options struct {
	Fs       afero.Fs
	Parser   parser.Parser
	Reporter report.Reporter
	Metrics  *metrics.Metrics
	Format   stringtable.Format
}

// Extractor wires discovery, parsing and persistence together.
type Extractor struct {
	fs       afero.Fs
	parser   parser.Parser
	walker   *filewalker.Walker
	reporter report.Reporter
	metrics  *metrics.Metrics
	format   stringtable.Format
}

// New creates an Extractor from opts.
func New(opts Options) (*Extractor, error) {
	e := &Extractor{
		fs:       opts.Fs,
		parser:   opts.Parser,
		reporter: opts.Reporter,
		metrics:  opts.Metrics,
		format:   opts.Format,
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.parser == nil {
		p, err := parser.NewAsmParser(e.fs, parser.DefaultExtension, "")
		if err != nil {
			return nil, err
		}
		e.parser = p
	}
	if e.reporter == nil {
		e.reporter = report.Nop{}
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	if e.format == "" {
		e.format = stringtable.FormatJSON
	}
	e.reporter = &countingReporter{next: e.reporter, metrics: e.metrics}
	e.walker = filewalker.NewWalker(e.fs, e.parser, e.reporter)
	return e, nil
}

// Run extracts every string entry under root and writes the table into
// root. Unreadable directories and files are reported and skipped; only a
// root that cannot be resolved or a failed write is returned as an error.
func (e *Extractor) Run(root string) (*stringtable.Summary, error) {
	start := time.Now()

	resolved, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}
	report.Info(e.reporter, "Scanning for listing files", "root", resolved)

	files := e.walker.Walk(resolved)
	e.metrics.FilesDiscovered.Add(float64(len(files)))
	report.Info(e.reporter, "Discovered files", "count", len(files), "root", resolved)

	parts := make([]stringtable.FileStrings, 0, len(files))
	for _, path := range files {
		part := e.extractFile(path)
		if n := len(part.Strings); n > 0 {
			report.Info(e.reporter, "Extracted strings", "file", path, "count", n)
		}
		parts = append(parts, part)
	}

	table, sum := stringtable.Fold(parts)
	sum.Root = resolved
	sum.FilesFound = len(files)
	e.metrics.EntriesExtracted.Add(float64(sum.Total))
	report.Info(e.reporter, "Total strings extracted", "total", sum.Total, "keys", sum.Keys)

	out := stringtable.OutputPath(resolved, e.format)
	data, err := stringtable.Save(e.fs, out, table, e.format)
	if err != nil {
		report.Error(e.reporter, err, "Failed to save string table", "path", out)
		return nil, err
	}
	sum.OutputPath = out
	sum.Digest = textutil.Digest(data)

	e.metrics.TableKeys.Set(float64(sum.Keys))
	e.metrics.RunDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	e.metrics.LastSuccessfulRun.WithLabelValues("extract").SetToCurrentTime()
	report.Info(e.reporter, "Strings saved", "path", out, "digest", sum.Digest)

	return &sum, nil
}

// extractFile parses one listing. A file that cannot be read contributes an
// empty mapping.
func (e *Extractor) extractFile(path string) stringtable.FileStrings {
	result, err := e.parser.Parse(path)
	if err != nil {
		e.metrics.FilesScanned.WithLabelValues("error").Inc()
		report.Warn(e.reporter, err, "Error reading file", "path", path)
		return stringtable.FileStrings{Path: path}
	}
	e.metrics.FilesScanned.WithLabelValues("ok").Inc()

	for _, entry := range result.Entries {
		report.Debug(e.reporter, "Matched string",
			"file", path,
			"line", entry.Line,
			"id", entry.ID,
			"content", textutil.Truncate(entry.Content, previewLen),
		)
	}

	return stringtable.FileStrings{Path: path, Strings: result.Strings()}
}

// countingReporter feeds directory errors into metrics before forwarding.
type countingReporter struct {
	next    report.Reporter
	metrics *metrics.Metrics
}

func (c *countingReporter) Report(ev report.Event) {
	var derr *filewalker.DirReadError
	if errors.As(ev.Err, &derr) {
		c.metrics.DirectoryErrors.Inc()
	}
	c.next.Report(ev)
}
