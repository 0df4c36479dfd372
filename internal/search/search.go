// Package search finds case-insensitive literal matches of a query in a document
// and tracks which match is active.
package search

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"

	"claridoc/internal/logging"
)

// matchTimeout bounds a single scan; the escaped pattern cannot backtrack badly
// but documents can be large.
const matchTimeout = 2 * time.Second

// Match is a half-open span [Start, End) in rune offsets.
type Match struct {
	Start int
	End   int
}

// Index holds the query, the matches against the last content it saw, and the
// active match. The zero value is an empty index. Not safe for concurrent use.
type Index struct {
	query   string
	re      *regexp2.Regexp
	content string
	matches []Match
	active  int
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// SetQuery replaces the query, rescans content and resets the active match to 0.
func (x *Index) SetQuery(query, content string) error {
	x.query = query
	x.re = nil
	x.active = 0
	if query != "" {
		re, err := regexp2.Compile(regexp2.Escape(query), regexp2.IgnoreCase)
		if err != nil {
			return fmt.Errorf("compile query %q: %w", query, err)
		}
		re.MatchTimeout = matchTimeout
		x.re = re
	}
	return x.Update(content)
}

// Update rescans content for the current query. The active index survives unless
// it falls outside the new match count.
func (x *Index) Update(content string) error {
	x.content = content
	x.matches = x.matches[:0]
	if x.re == nil {
		x.active = 0
		return nil
	}

	m, err := x.re.FindStringMatch(content)
	for m != nil && err == nil {
		x.matches = append(x.matches, Match{Start: m.Index, End: m.Index + m.Length})
		m, err = x.re.FindNextMatch(m)
	}
	if err != nil {
		x.matches = x.matches[:0]
		x.active = 0
		return fmt.Errorf("search %q: %w", x.query, err)
	}

	if x.active >= len(x.matches) {
		x.active = 0
	}
	logging.SearchDebug("query %q: %d matches", x.query, len(x.matches))
	return nil
}

// Query returns the current query.
func (x *Index) Query() string { return x.query }

// Count returns the number of matches.
func (x *Index) Count() int { return len(x.matches) }

// Active returns the active match index. It is 0 when there are no matches.
func (x *Index) Active() int { return x.active }

// Next moves to the following match, wrapping to the first. No-op without matches.
func (x *Index) Next() int {
	if n := len(x.matches); n > 0 {
		x.active = (x.active + 1) % n
	}
	return x.active
}

// Prev moves to the preceding match, wrapping to the last. No-op without matches.
func (x *Index) Prev() int {
	if n := len(x.matches); n > 0 {
		x.active = (x.active - 1 + n) % n
	}
	return x.active
}

// Matches returns a copy of the match spans in document order.
func (x *Index) Matches() []Match {
	out := make([]Match, len(x.matches))
	copy(out, x.matches)
	return out
}

// Current returns the active match, if any.
func (x *Index) Current() (Match, bool) {
	if len(x.matches) == 0 {
		return Match{}, false
	}
	return x.matches[x.active], true
}

// Text returns the matched text of m from the last scanned content.
func (x *Index) Text(m Match) string {
	r := []rune(x.content)
	if m.Start < 0 || m.End > len(r) || m.Start > m.End {
		return ""
	}
	return string(r[m.Start:m.End])
}
