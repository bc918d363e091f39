package extractor

import (
	"errors"
	"os"
	"testing"

	"gaia-strings/internal/filewalker"
	"gaia-strings/internal/metrics"
	"gaia-strings/internal/parser"
	"gaia-strings/internal/report"
	"gaia-strings/internal/stringtable"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deniedFs fails to open the listed paths.
type deniedFs struct {
	afero.Fs
	denied map[string]bool
}

func (d *deniedFs) Open(name string) (afero.File, error) {
	if d.denied[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return d.Fs.Open(name)
}

func (d *deniedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if d.denied[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return d.Fs.OpenFile(name, flag, perm)
}

func newTestExtractor(t *testing.T, fs afero.Fs) (*Extractor, *report.Recorder, *metrics.Metrics) {
	t.Helper()
	rec := &report.Recorder{}
	m := metrics.New()
	ex, err := New(Options{Fs: fs, Reporter: rec, Metrics: m})
	require.NoError(t, err)
	return ex, rec, m
}

func write(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestRun_LastWriteWinsAfterCaseNormalization(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/data/a.asm", "asciistring_1a |Hello|\n")
	write(t, fs, "/data/b.asm", "asciistring_1A |World|\n")

	ex, rec, m := newTestExtractor(t, fs)
	sum, err := ex.Run("/data")
	require.NoError(t, err)

	table, err := stringtable.Load(fs, "/data/strings.json")
	require.NoError(t, err)
	assert.Equal(t, stringtable.Table{"1A": "World"}, table)

	assert.Equal(t, 2, sum.FilesFound)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Keys)
	assert.Equal(t, "/data/strings.json", sum.OutputPath)
	assert.Equal(t, []stringtable.FileCount{
		{Path: "/data/a.asm", Count: 1},
		{Path: "/data/b.asm", Count: 1},
	}, sum.Files)

	assert.Empty(t, rec.AtLevel(report.LevelWarn))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FilesDiscovered))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EntriesExtracted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TableKeys))
}

func TestRun_DiscoveryOrderDecidesCollisions(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/data/z.asm", "asciistring_5 |from z|\n")
	write(t, fs, "/data/a/deep/er/x.asm", "asciistring_5 |from x|\nasciistring_6 |six|\n")
	write(t, fs, "/data/a/notes.txt", "asciistring_7 |ignored|\n")

	ex, _, _ := newTestExtractor(t, fs)
	sum, err := ex.Run("/data")
	require.NoError(t, err)

	table, err := stringtable.Load(fs, sum.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, stringtable.Table{"5": "from z", "6": "six"}, table)
	assert.Equal(t, 3, sum.Total)
}

func TestRun_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/data/bank01.asm", "asciistring_10 |One|\r\nasciistring_2 |Two|\r\n")
	write(t, fs, "/data/sub/bank02.asm", "asciistring_ab |ガイア|\n")

	ex, _, _ := newTestExtractor(t, fs)

	first, err := ex.Run("/data")
	require.NoError(t, err)
	firstBytes, err := afero.ReadFile(fs, first.OutputPath)
	require.NoError(t, err)

	second, err := ex.Run("/data")
	require.NoError(t, err)
	secondBytes, err := afero.ReadFile(fs, second.OutputPath)
	require.NoError(t, err)

	assert.Equal(t, firstBytes, secondBytes)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Contains(t, string(firstBytes), `"AB": "ガイア"`)
}

func TestRun_SkipsUnreadableUnits(t *testing.T) {
	base := afero.NewMemMapFs()
	write(t, base, "/data/a/ok.asm", "asciistring_1 |ok|\n")
	write(t, base, "/data/locked/hidden.asm", "asciistring_2 |hidden|\n")
	write(t, base, "/data/broken.asm", "asciistring_3 |broken|\n")
	write(t, base, "/data/z/ok.asm", "asciistring_4 |also ok|\n")
	fs := &deniedFs{Fs: base, denied: map[string]bool{
		"/data/locked":     true,
		"/data/broken.asm": true,
	}}

	ex, rec, m := newTestExtractor(t, fs)
	sum, err := ex.Run("/data")
	require.NoError(t, err)

	table, err := stringtable.Load(base, "/data/strings.json")
	require.NoError(t, err)
	assert.Equal(t, stringtable.Table{"1": "ok", "4": "also ok"}, table)
	assert.Equal(t, 3, sum.FilesFound)
	assert.Equal(t, 2, sum.Total)

	warnings := rec.AtLevel(report.LevelWarn)
	require.Len(t, warnings, 2)
	var derr *filewalker.DirReadError
	var ferr *parser.FileReadError
	assert.True(t, errors.As(warnings[0].Err, &ferr) || errors.As(warnings[1].Err, &ferr))
	assert.True(t, errors.As(warnings[0].Err, &derr) || errors.As(warnings[1].Err, &derr))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DirectoryErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FilesScanned.WithLabelValues("error")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FilesScanned.WithLabelValues("ok")))
}

func TestRun_WriteFailureIsFatal(t *testing.T) {
	base := afero.NewMemMapFs()
	write(t, base, "/data/a.asm", "asciistring_1 |x|\n")

	ex, rec, _ := newTestExtractor(t, afero.NewReadOnlyFs(base))
	_, err := ex.Run("/data")
	require.Error(t, err)

	var werr *stringtable.WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "/data/strings.json", werr.Path)
	assert.Len(t, rec.AtLevel(report.LevelError), 1)
}

func TestRun_EmptyTree(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))

	ex, _, _ := newTestExtractor(t, fs)
	sum, err := ex.Run("/data")
	require.NoError(t, err)
	assert.Zero(t, sum.FilesFound)

	data, err := afero.ReadFile(fs, "/data/strings.json")
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestRun_ReportsProgress(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/data/a.asm", "asciistring_1 |x|\nasciistring_2 |y|\n")
	write(t, fs, "/data/b.asm", "nothing here\n")

	ex, rec, _ := newTestExtractor(t, fs)
	_, err := ex.Run("/data")
	require.NoError(t, err)

	var perFile, totals []report.Event
	for _, ev := range rec.AtLevel(report.LevelInfo) {
		switch ev.Msg {
		case "Extracted strings":
			perFile = append(perFile, ev)
		case "Total strings extracted":
			totals = append(totals, ev)
		}
	}

	require.Len(t, perFile, 1)
	assert.Equal(t, "/data/a.asm", perFile[0].Fields["file"])
	assert.Equal(t, 2, perFile[0].Fields["count"])
	require.Len(t, totals, 1)
	assert.Equal(t, 2, totals[0].Fields["total"])

	assert.Len(t, rec.AtLevel(report.LevelDebug), 2)
}

func TestRun_YAMLFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/data/a.asm", "asciistring_1 |x|\n")

	ex, err := New(Options{Fs: fs, Format: stringtable.FormatYAML})
	require.NoError(t, err)

	sum, err := ex.Run("/data")
	require.NoError(t, err)
	assert.Equal(t, "/data/strings.yaml", sum.OutputPath)

	table, err := stringtable.Load(fs, sum.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, stringtable.Table{"1": "x"}, table)
}
