package stringtable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Format is a serialization format for the table artifact.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// BaseName is the artifact file name without extension.
const BaseName = "strings"

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want json or yaml)", s)
	}
}

// FileName returns the artifact file name for the format.
func (f Format) FileName() string {
	if f == FormatYAML {
		return BaseName + ".yaml"
	}
	return BaseName + ".json"
}

// OutputPath returns where the artifact for root is written.
func OutputPath(root string, f Format) string {
	return filepath.Join(root, f.FileName())
}

// WriteError reports a failure to persist the artifact. It is fatal for a
// run: no partial artifact is left behind.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Encode serializes the table. JSON uses two-space indentation and leaves
// HTML characters unescaped; both formats emit keys in sorted order.
func Encode(t Table, f Format) ([]byte, error) {
	if t == nil {
		t = Table{}
	}

	var buf bytes.Buffer
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]string(t)); err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(map[string]string(t)); err != nil {
			return nil, fmt.Errorf("encode JSON: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Decode parses an artifact produced by Encode.
func Decode(data []byte, f Format) (Table, error) {
	t := Table{}
	switch f {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	}
	return t, nil
}

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Save encodes t and writes it to path atomically. It returns the bytes
// written so callers can digest them. Every failure is a *WriteError.
func Save(fs afero.Fs, path string, t Table, f Format) ([]byte, error) {
	data, err := Encode(t, f)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	if err := WriteFileAtomic(fs, path, data, 0o644); err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	return data, nil
}

// Load reads a table artifact, choosing the format from the extension.
func Load(fs afero.Fs, path string) (Table, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	t, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// WriteFileAtomic writes data to a temporary file next to path, syncs it and
// renames it over path. The temporary file is removed on failure.
func WriteFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Chmod(tmpPath, perm); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
