package parser

import "fmt"

// Entry is a string-table line extracted from an assembly listing.
type Entry struct {
	// ID is the hexadecimal identifier, canonicalized to uppercase.
	ID string
	// Content is the payload between the pipes, verbatim.
	Content string
	// Line is the 1-based line number in the source file.
	Line int
	// Start and End are the byte offsets of Content within the raw line.
	Start, End int
}

// ParseResult holds parsing output for a single file.
type ParseResult struct {
	// FilePath is the path of the parsed file.
	FilePath string
	// Entries are the matched lines in file order, duplicates included.
	Entries []Entry
	// RawLines preserves the decoded file content for reconstruction.
	RawLines []string
}

// Strings returns the id -> content mapping of the file. When an id occurs
// more than once, the last occurrence wins.
func (r *ParseResult) Strings() map[string]string {
	out := make(map[string]string, len(r.Entries))
	for _, e := range r.Entries {
		out[e.ID] = e.Content
	}
	return out
}

// Parser is the interface for listing parsers.
type Parser interface {
	// CanParse returns true if this parser handles the given file name.
	CanParse(name string) bool
	// Parse extracts string entries from a file.
	Parse(filePath string) (*ParseResult, error)
	// Reconstruct rebuilds the file with replacement content keyed by ID.
	Reconstruct(result *ParseResult, table map[string]string) (*Reconstruction, error)
}

// Reconstruction is the output of Parser.Reconstruct.
type Reconstruction struct {
	// Data is the rebuilt file content.
	Data []byte
	// Changed is the number of lines whose content was replaced.
	Changed int
	// Rejected lists ids whose replacement would have split a line.
	Rejected []string
}

// FileReadError reports a file that could not be read or decoded.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }
