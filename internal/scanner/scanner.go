// Package scanner implements a cursor-based marker scanner over a markup
// string. Extraction is written as a sequence of Seek/Peek/Clip calls that
// walk a document whose markup is too irregular for a tree parser.
//
// The scanner keeps the first error it hits. Once an operation fails every
// later operation is a no-op (Peek reports absent, Clip returns ""), so a
// caller writes straight-line extraction code and checks Err once.
package scanner

import (
	"fmt"
	"strings"
)

// Cursor indices. Primary anchors every search, Secondary marks the end of a clip.
const (
	Start     = 0
	Primary   = 1
	Secondary = 2
)

// ParseError reports a marker that could not be found, or a cursor that
// walked past the end of the input.
type ParseError struct {
	Marker string
	Offset int
}

func (e *ParseError) Error() string {
	if e.Marker == "" {
		return fmt.Sprintf("unexpected end of data at index %d", e.Offset)
	}
	return fmt.Sprintf("did not find '%s' starting at index %d", e.Marker, e.Offset)
}

type Scanner struct {
	data    string
	cursors [3]int
	err     error
}

func New(data string) *Scanner {
	return &Scanner{data: data}
}

// Err returns the first error encountered.
func (s *Scanner) Err() error {
	return s.err
}

// Len is the length of the underlying input.
func (s *Scanner) Len() int {
	return len(s.data)
}

// Cursor returns the position of a cursor.
func (s *Scanner) Cursor(cursor int) int {
	return s.cursors[cursor]
}

// Jump moves a cursor to an absolute position.
func (s *Scanner) Jump(cursor, pos int) {
	if s.err != nil {
		return
	}
	if pos < 0 || pos > len(s.data) {
		s.err = &ParseError{Offset: pos}
		return
	}
	s.cursors[cursor] = pos
}

// Peek returns the absolute index of marker at or after the cursor, or -1.
func (s *Scanner) Peek(cursor int, marker string) int {
	if s.err != nil {
		return -1
	}
	from := s.cursors[cursor]
	idx := strings.Index(s.data[from:], marker)
	if idx == -1 {
		return -1
	}
	return from + idx
}

// Seek moves cursor to the occurrence of each marker in turn. Every search
// starts from the primary cursor, so after the first marker the remaining
// markers narrow in on a position within the region the first one found.
func (s *Scanner) Seek(cursor int, markers ...string) {
	for _, marker := range markers {
		if s.err != nil {
			return
		}
		from := s.cursors[Primary]
		idx := strings.Index(s.data[from:], marker)
		if idx == -1 {
			s.err = &ParseError{Marker: marker, Offset: from}
			return
		}
		s.cursors[cursor] = from + idx
	}
}

// Increment advances a cursor by one character.
func (s *Scanner) Increment(cursor int) {
	if s.err != nil {
		return
	}
	if s.cursors[cursor]+1 > len(s.data) {
		s.err = &ParseError{Offset: s.cursors[cursor]}
		return
	}
	s.cursors[cursor]++
}

// Read returns the text between the primary and secondary cursors.
func (s *Scanner) Read() string {
	if s.err != nil {
		return ""
	}
	start, end := s.cursors[Primary], s.cursors[Secondary]
	if end < start {
		s.err = &ParseError{Offset: end}
		return ""
	}
	return s.data[start:end]
}

// Clip seeks the primary cursor through before, steps past its last
// character, seeks the secondary cursor to after and returns the text in
// between. The primary cursor is left at the start of the returned text.
func (s *Scanner) Clip(before []string, after string) string {
	s.Seek(Primary, before...)
	s.Increment(Primary)
	s.Seek(Secondary, after)
	return s.Read()
}
