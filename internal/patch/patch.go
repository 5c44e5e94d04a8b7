// Package patch rewrites the player count cell of a server browser row.
//
// The cell holds markup along the lines of `<span>61 / 64</span>`. Both strategies are pure
// string transforms keyed off the first " / " delimiter found in text content. Delimiters inside
// tags, such as a title attribute, are skipped.
package patch

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Delimiter separates the displayed count from the server capacity.
const Delimiter = " / "

var (
	ErrNoDelimiter = errors.New("count delimiter not found")
	ErrParseCount  = errors.New("failed to parse count")
)

// Mode selects how the corrected count is written.
type Mode int

const (
	// Annotate keeps the original count and inserts the corrected one next to it: `61 [12] / 64`.
	Annotate Mode = iota
	// Replace drops the original count entirely: `[12] / 64`. Host side sorting still uses the
	// original value.
	Replace
)

func (m Mode) String() string {
	if m == Replace {
		return "replace"
	}

	return "annotate"
}

var (
	// Leading whitespace and opening tags of the delimiter line, kept in replace mode so the
	// cell layout survives.
	leadingMarkupRe = regexp.MustCompile(`^\s*(?:<[a-zA-Z][^>]*>\s*)*`)
	tagRe           = regexp.MustCompile(`<[^>]*>`)
	countRe         = regexp.MustCompile(`(?:(\d+)\s*)?(?:\[(\d+)\]\s*)?/\s*(\d+)`)
)

// Marker renders the corrected count as it appears in the cell.
func Marker(count int) string {
	return "<b>[" + strconv.Itoa(count) + "]</b>"
}

// Apply returns text with the corrected count written according to mode. The same input always
// produces the same output.
func Apply(text string, count int, mode Mode) (string, error) {
	idx := delimiterIndex(text)
	if idx < 0 {
		return text, ErrNoDelimiter
	}

	if mode == Replace {
		lineStart := strings.LastIndex(text[:idx], "\n") + 1
		segment := text[lineStart:idx]
		lead := leadingMarkupRe.FindString(segment)
		// Tags between the fake count and the delimiter stay so every kept opening tag is still closed.
		kept := strings.Join(tagRe.FindAllString(segment[len(lead):], -1), "")

		return text[:lineStart] + lead + Marker(count) + kept + text[idx:], nil
	}

	return text[:idx] + " " + Marker(count) + text[idx:], nil
}

// delimiterIndex returns the offset of the first Delimiter outside of any tag, or -1.
func delimiterIndex(text string) int {
	var (
		inTag bool
		quote byte
	)

	for idx := 0; idx < len(text); idx++ {
		char := text[idx]

		switch {
		case inTag && quote != 0:
			if char == quote {
				quote = 0
			}
		case inTag:
			switch char {
			case '"', '\'':
				quote = char
			case '>':
				inTag = false
			}
		case char == '<':
			inTag = true
		case strings.HasPrefix(text[idx:], Delimiter):
			return idx
		}
	}

	return -1
}

// Count is the parsed content of a count cell.
type Count struct {
	Fake         int
	HasFake      bool
	Corrected    int
	HasCorrected bool
	Max          int
}

// Parse extracts the counts from cell markup, patched or not.
func Parse(text string) (Count, error) {
	plain := tagRe.ReplaceAllString(text, "")

	match := countRe.FindStringSubmatch(plain)
	if match == nil {
		return Count{}, ErrParseCount
	}

	var (
		count Count
		err   error
	)

	if match[1] != "" {
		if count.Fake, err = strconv.Atoi(match[1]); err != nil {
			return Count{}, errors.Join(err, ErrParseCount)
		}
		count.HasFake = true
	}

	if match[2] != "" {
		if count.Corrected, err = strconv.Atoi(match[2]); err != nil {
			return Count{}, errors.Join(err, ErrParseCount)
		}
		count.HasCorrected = true
	}

	if count.Max, err = strconv.Atoi(match[3]); err != nil {
		return Count{}, errors.Join(err, ErrParseCount)
	}

	return count, nil
}
