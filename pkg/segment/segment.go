// Package segment splits extracted source text into bounded, overlapping
// chunks. Splitting is deterministic: the same text and parameters always
// produce the same chunk sequence, which is what makes re-ingestion
// overwrite chunks instead of duplicating them.
package segment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidConfiguration is returned when the chunking parameters are
// unusable. This is a caller error, never a mid-ingestion failure.
var ErrInvalidConfiguration = errors.New("invalid chunking configuration")

// Piece is one chunk of a source's text. Index is 0-based and stable.
type Piece struct {
	Index int
	Text  string
}

var paragraphRe = regexp.MustCompile(`\n\s*\n`)

// ValidateConfig checks chunking parameters without splitting anything.
func ValidateConfig(chunkSize, overlap int) error {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: chunk_size=%d overlap=%d (require 0 <= overlap < chunk_size)",
			ErrInvalidConfiguration, chunkSize, overlap)
	}
	return nil
}

// Split chunks text into pieces of at most chunkSize characters, preferring
// paragraph boundaries. Consecutive pieces overlap by up to overlap
// characters of the previous piece's tail. Empty or whitespace-only text
// yields no pieces and no error.
func Split(text string, chunkSize, overlap int) ([]Piece, error) {
	if err := ValidateConfig(chunkSize, overlap); err != nil {
		return nil, err
	}

	body := strings.TrimSpace(text)
	if body == "" {
		return nil, nil
	}

	paragraphs := make([]string, 0)
	for _, p := range paragraphRe.Split(body, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var windows []string
	var cur strings.Builder
	seed := "" // overlap tail carried from the previous window

	flush := func() {
		if cur.Len() == 0 || cur.String() == seed {
			return
		}
		win := cur.String()
		windows = append(windows, win)
		seed = tail(win, overlap)
		cur.Reset()
		cur.WriteString(seed)
	}

	for _, para := range paragraphs {
		// Fits in the current window alongside what is already there.
		if cur.Len() == 0 && len(para) <= chunkSize {
			cur.WriteString(para)
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) <= chunkSize {
			cur.WriteString("\n\n")
			cur.WriteString(para)
			continue
		}

		flush()

		// Fits in a fresh window behind the overlap seed.
		if cur.Len()+2+len(para) <= chunkSize {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(para)
			continue
		}

		// Oversized paragraph: hard-split into character windows that
		// overlap each other by the configured tail. The first window
		// keeps the overlap carried from the previous window, and cuts
		// land on rune boundaries so no window holds invalid UTF-8.
		span := para
		if seed != "" {
			span = seed + "\n\n" + para
		}
		cur.Reset()
		runes := []rune(span)
		step := chunkSize - overlap
		for start := 0; start < len(runes); start += step {
			end := start + chunkSize
			if end >= len(runes) {
				windows = append(windows, string(runes[start:]))
				break
			}
			windows = append(windows, string(runes[start:end]))
		}
		seed = tail(windows[len(windows)-1], overlap)
		cur.WriteString(seed)
	}

	flush()

	pieces := make([]Piece, len(windows))
	for i, w := range windows {
		pieces[i] = Piece{Index: i, Text: w}
	}
	return pieces, nil
}

// tail returns at most n trailing runes of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
