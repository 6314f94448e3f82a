// Package script splits SQL script text into individual statements.
//
// Statements end at a semicolon that is outside string literals, quoted
// identifiers, comments and (for PostgreSQL) dollar-quoted bodies. PostgreSQL
// E'' strings honour backslash escapes and a $ inside an identifier does
// not start a dollar quote. Empty statements and statements made only of
// comments are skipped.
package script

import (
	"bufio"
	"bytes"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
)

type state int

const (
	stateNormal state = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateLineComment
	stateBlockComment
	stateDollarQuote
)

// Splitter reads one statement at a time from an io.Reader.
type Splitter struct {
	r       *bufio.Reader
	dialect database.Dialect

	buf        []byte
	state      state
	content    bool   // buf holds something other than whitespace and comments
	held       rune   // '-' or '/' that may open a comment, not yet counted as content
	prev       rune   // previous rune inside a block comment
	depth      int    // block comment nesting, PostgreSQL only
	delim      []byte // active dollar-quote delimiter, e.g. "$body$"
	bodyStart  int
	escapeNext bool
	escapes    bool // current single-quoted literal is a PostgreSQL E'' string
	last       rune // previous rune
	ident      int  // length of the identifier run ending at last, 0 outside one
	err        error
	line       int
}

// NewSplitter returns a Splitter reading r with the quoting rules of d.
func NewSplitter(r io.Reader, d database.Dialect) *Splitter {
	return &Splitter{r: bufio.NewReader(r), dialect: d, line: 1}
}

// Next returns the next statement without its terminating semicolon.
// It returns ("", false, nil) when the input is exhausted.
func (s *Splitter) Next() (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}

	for {
		ch, _, err := s.r.ReadRune()
		if err == io.EOF {
			return s.finish()
		}
		if err != nil {
			s.err = errs.Wrap(errs.ErrKindInvalidInput, "failed to read script", err)
			return "", false, s.err
		}
		if ch == '\n' {
			s.line++
		}

		if stmt, ok := s.step(ch); ok {
			return stmt, true, nil
		}
	}
}

// step feeds one rune through the state machine and reports a completed
// statement when ch was a terminating semicolon.
func (s *Splitter) step(ch rune) (string, bool) {
	if s.state == stateNormal {
		stmt, ok := s.normal(ch)
		s.track(ch)
		return stmt, ok
	}
	s.quoted(ch)
	s.last, s.ident = ch, 0
	return "", false
}

// track records ch as the previous rune seen in normal state.
func (s *Splitter) track(ch rune) {
	if isIdentRune(ch) {
		s.ident++
	} else {
		s.ident = 0
	}
	s.last = ch
}

// quoted advances the quote and comment states.
func (s *Splitter) quoted(ch rune) {
	switch s.state {
	case stateSingleQuote, stateDoubleQuote, stateBacktick:
		s.append(ch)
		if s.escapeNext {
			s.escapeNext = false
			return
		}
		if ch == '\\' && s.backslashEscapes() {
			s.escapeNext = true
			return
		}
		// A doubled quote re-enters the quoted state on the next rune.
		if ch == s.closingQuote() {
			s.state = stateNormal
		}

	case stateLineComment:
		s.append(ch)
		if ch == '\n' {
			s.state = stateNormal
		}

	case stateBlockComment:
		s.append(ch)
		switch {
		case s.prev == '*' && ch == '/':
			s.prev = 0
			s.depth--
			if s.depth == 0 {
				s.state = stateNormal
			}
		case s.prev == '/' && ch == '*' && s.dialect == database.DialectPostgres:
			s.prev = 0
			s.depth++
		default:
			s.prev = ch
		}

	case stateDollarQuote:
		s.append(ch)
		if ch == '$' && len(s.buf)-s.bodyStart >= len(s.delim) && bytes.HasSuffix(s.buf, s.delim) {
			s.state = stateNormal
			s.delim = nil
		}
	}
}

// backslashEscapes reports whether '\\' escapes the next rune in the current
// quoted state: always in MySQL strings, and in PostgreSQL only inside E''.
func (s *Splitter) backslashEscapes() bool {
	switch s.dialect {
	case database.DialectMySQL:
		return s.state != stateBacktick
	case database.DialectPostgres:
		return s.state == stateSingleQuote && s.escapes
	default:
		return false
	}
}

func (s *Splitter) normal(ch rune) (string, bool) {
	opener := s.held
	s.held = 0
	switch {
	case opener == '-' && ch == '-':
		s.append(ch)
		s.state = stateLineComment
		return "", false
	case opener == '/' && ch == '*':
		s.append(ch)
		s.state = stateBlockComment
		s.depth = 1
		s.prev = 0
		return "", false
	case opener != 0:
		s.content = true
	}

	switch ch {
	case ';':
		return s.take()
	case '\'':
		s.state = stateSingleQuote
		// E'..' and e'..' take backslash escapes. A quote right after a
		// closing quote continues the same literal ('it''s').
		eString := s.ident == 1 && (s.last == 'E' || s.last == 'e')
		s.escapes = eString || (s.last == '\'' && s.escapes)
	case '"':
		s.state = stateDoubleQuote
	case '`':
		if s.dialect == database.DialectMySQL {
			s.state = stateBacktick
		}
	case '#':
		if s.dialect == database.DialectMySQL {
			s.append(ch)
			s.state = stateLineComment
			return "", false
		}
	case '-', '/':
		s.append(ch)
		s.held = ch
		return "", false
	case '$':
		// Inside an identifier such as a$b, '$' is an ordinary character.
		if s.dialect == database.DialectPostgres && s.ident == 0 {
			s.append(ch)
			s.content = true
			s.dollar()
			return "", false
		}
	}

	s.append(ch)
	if !unicode.IsSpace(ch) {
		s.content = true
	}
	return "", false
}

// dollar is called after a '$' in normal state. It consumes a possible
// tag and enters stateDollarQuote when the delimiter is complete. Anything
// else ($1 parameters, operators) is left in normal state.
func (s *Splitter) dollar() {
	start := len(s.buf) - 1
	first := true
	for {
		ch, _, err := s.r.ReadRune()
		if err != nil {
			// EOF or a read error resurfaces on the next ReadRune in Next.
			return
		}
		switch {
		case ch == '$':
			s.append(ch)
			s.delim = append([]byte(nil), s.buf[start:]...)
			s.bodyStart = len(s.buf)
			s.state = stateDollarQuote
			return
		case ch == '_' || unicode.IsLetter(ch) || (!first && unicode.IsDigit(ch)):
			s.append(ch)
			first = false
		default:
			_ = s.r.UnreadRune()
			return
		}
	}
}

// take returns the buffered statement and resets the buffer. It reports
// false when the buffer holds nothing but whitespace and comments.
func (s *Splitter) take() (string, bool) {
	stmt := string(bytes.TrimSpace(s.buf))
	hasContent := s.content || s.held != 0
	s.buf = s.buf[:0]
	s.content = false
	s.held = 0
	return stmt, hasContent
}

func (s *Splitter) finish() (string, bool, error) {
	switch s.state {
	case stateNormal, stateLineComment:
	default:
		s.err = errs.Newf(errs.ErrKindInvalidInput, "unterminated %s at end of script (line %d)", s.state, s.line)
		return "", false, s.err
	}
	s.state = stateNormal
	if stmt, ok := s.take(); ok {
		return stmt, true, nil
	}
	return "", false, nil
}

func isIdentRune(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func (s *Splitter) append(ch rune) {
	s.buf = utf8.AppendRune(s.buf, ch)
}

func (s *Splitter) closingQuote() rune {
	switch s.state {
	case stateDoubleQuote:
		return '"'
	case stateBacktick:
		return '`'
	default:
		return '\''
	}
}

func (st state) String() string {
	switch st {
	case stateSingleQuote:
		return "string literal"
	case stateDoubleQuote:
		return "quoted identifier"
	case stateBacktick:
		return "quoted identifier"
	case stateLineComment:
		return "comment"
	case stateBlockComment:
		return "block comment"
	case stateDollarQuote:
		return "dollar-quoted string"
	default:
		return "statement"
	}
}
