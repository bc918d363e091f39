// Package stringtable merges per-file string maps into one table and
// persists it.
package stringtable

import "strings"

// Table maps a hex identifier to its content.
type Table map[string]string

// FileStrings is the partial mapping contributed by one listing file.
type FileStrings struct {
	Path    string
	Strings map[string]string
}

// FileCount records how many distinct ids a file contributed.
type FileCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// Summary describes an extraction run.
type Summary struct {
	Root       string      `json:"root"`
	FilesFound int         `json:"files_found"`
	Files      []FileCount `json:"files,omitempty"`
	Total      int         `json:"total"`
	Keys       int         `json:"keys"`
	OutputPath string      `json:"output_path,omitempty"`
	Digest     string      `json:"digest,omitempty"`
}

// Canonical returns t with every id uppercased. When two ids differ only in
// case, the one already written in uppercase wins.
func Canonical(t Table) Table {
	out := make(Table, len(t))
	for id, content := range t {
		upper := strings.ToUpper(id)
		if _, taken := out[upper]; taken && upper != id {
			continue
		}
		out[upper] = content
	}
	return out
}

// Merge copies part into acc; ids already in acc are overwritten.
func Merge(acc Table, part map[string]string) Table {
	if acc == nil {
		acc = make(Table, len(part))
	}
	for id, content := range part {
		acc[id] = content
	}
	return acc
}

// Fold merges parts in order, so a later file wins over an earlier one for
// the same id. Total is the sum of per-file counts and can exceed the number
// of keys in the table.
func Fold(parts []FileStrings) (Table, Summary) {
	acc := make(Table)
	var sum Summary
	for _, part := range parts {
		n := len(part.Strings)
		if n == 0 {
			continue
		}
		acc = Merge(acc, part.Strings)
		sum.Files = append(sum.Files, FileCount{Path: part.Path, Count: n})
		sum.Total += n
	}
	sum.Keys = len(acc)
	return acc, sum
}
