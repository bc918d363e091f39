package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Prefix is the literal token that starts a string-table line.
const Prefix = "asciistring_"

// DefaultExtension is the suffix of the listing files the engine writes.
const DefaultExtension = ".asm"

// AsmParser extracts string-table entries from assembly listings.
//
// A line matches when it has this shape:
//
//	line    = "asciistring_" hexid sep "|" content "|" [ CR ]
//	hexid   = hexdigit { hexdigit }
//	sep     = space { space }
//	content = { char - ( LF | CR | U+2028 | U+2029 ) }
//
// The id is case-insensitive and canonicalized to uppercase. Content may
// itself contain pipes: it runs up to the last pipe on the line. Lines that
// do not match are ignored.
type AsmParser struct {
	fs        afero.Fs
	extension string
	decoder   encoding.Encoding
}

// NewAsmParser creates a parser reading from fs. An empty extension means
// DefaultExtension; an empty or "utf-8" charset leaves bytes untouched.
func NewAsmParser(fs afero.Fs, extension, charset string) (*AsmParser, error) {
	if extension == "" {
		extension = DefaultExtension
	}
	p := &AsmParser{fs: fs, extension: extension}

	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
	default:
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", charset, err)
		}
		p.decoder = enc
	}
	return p, nil
}

func (p *AsmParser) CanParse(name string) bool {
	return strings.HasSuffix(name, p.extension)
}

func (p *AsmParser) Parse(filePath string) (*ParseResult, error) {
	data, err := afero.ReadFile(p.fs, filePath)
	if err != nil {
		return nil, &FileReadError{Path: filePath, Err: err}
	}

	if p.decoder != nil {
		data, err = p.decoder.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &FileReadError{Path: filePath, Err: fmt.Errorf("decode: %w", err)}
		}
	}

	result := &ParseResult{
		FilePath: filePath,
		RawLines: strings.Split(string(data), "\n"),
	}

	for i, line := range result.RawLines {
		entry, ok := ParseLine(line)
		if !ok {
			continue
		}
		entry.Line = i + 1
		result.Entries = append(result.Entries, entry)
	}

	return result, nil
}

// ParseLine matches a single line (without its LF) against the grammar.
func ParseLine(line string) (Entry, bool) {
	if !strings.HasPrefix(line, Prefix) {
		return Entry{}, false
	}
	pos := len(Prefix)

	idStart := pos
	for pos < len(line) && isHexDigit(line[pos]) {
		pos++
	}
	if pos == idStart {
		return Entry{}, false
	}
	id := strings.ToUpper(line[idStart:pos])

	sepStart := pos
	for pos < len(line) {
		r, size := utf8.DecodeRuneInString(line[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	if pos == sepStart || pos >= len(line) || line[pos] != '|' {
		return Entry{}, false
	}
	start := pos + 1

	end := len(line)
	if strings.HasSuffix(line, "\r") {
		end--
	}
	if end-1 < start || line[end-1] != '|' {
		return Entry{}, false
	}
	end--

	content := line[start:end]
	if containsLineTerminator(content) {
		return Entry{}, false
	}

	return Entry{ID: id, Content: content, Start: start, End: end}, true
}

// Reconstruct replaces the content of every matched line whose id is in
// table. Prefix, id casing, separator and trailing CR are kept as written.
// Replacements containing a line terminator are skipped and listed in
// Rejected.
func (p *AsmParser) Reconstruct(result *ParseResult, table map[string]string) (*Reconstruction, error) {
	lines := make([]string, len(result.RawLines))
	copy(lines, result.RawLines)

	rec := &Reconstruction{}
	for _, e := range result.Entries {
		replacement, ok := table[e.ID]
		if !ok || replacement == e.Content {
			continue
		}
		if containsLineTerminator(replacement) {
			rec.Rejected = append(rec.Rejected, e.ID)
			continue
		}
		idx := e.Line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		line := lines[idx]
		lines[idx] = line[:e.Start] + replacement + line[e.End:]
		rec.Changed++
	}

	rec.Data = []byte(strings.Join(lines, "\n"))
	if p.decoder != nil && rec.Changed > 0 {
		encoded, err := p.decoder.NewEncoder().Bytes(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", result.FilePath, err)
		}
		rec.Data = encoded
	}

	return rec, nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func containsLineTerminator(s string) bool {
	return strings.ContainsAny(s, "\n\r\u2028\u2029")
}
