// Package thoughtfilter strips chain-of-thought markup from model output.
//
// Some vendors interleave reasoning with the visible answer, wrapped either
// in an XML-like tag pair (<think>...</think>) or in a fenced code block
// whose language is one of the recognized tag names. The streaming Filter
// removes those segments from a sequence of arbitrarily-sized chunks without
// ever letting a partial marker leak across an emitted boundary.
package thoughtfilter

import (
	"regexp"
	"strings"
)

// Tags are the recognized thinking markers, matched case-insensitively.
var Tags = []string{"think", "analysis", "reasoning", "thought", "chain-of-thought", "cot"}

const fence = "```"

var (
	openMarkers  []string // "<tag>"
	closeMarkers map[string]string
	fenceMarkers []string // "```tag"
	maxMarkerLen int

	tagPatterns   []*regexp.Regexp
	fencePatterns []*regexp.Regexp
	strayPattern  *regexp.Regexp
)

func init() {
	closeMarkers = make(map[string]string, len(Tags))
	for _, tag := range Tags {
		open := "<" + tag + ">"
		closing := "</" + tag + ">"
		openMarkers = append(openMarkers, open)
		closeMarkers[tag] = closing
		fenceMarkers = append(fenceMarkers, fence+tag)
		for _, marker := range []string{open, closing, fence + tag} {
			if len(marker) > maxMarkerLen {
				maxMarkerLen = len(marker)
			}
		}
		tagPatterns = append(tagPatterns,
			regexp.MustCompile(`(?is)<`+regexp.QuoteMeta(tag)+`>.*?</`+regexp.QuoteMeta(tag)+`>`))
		fencePatterns = append(fencePatterns,
			regexp.MustCompile("(?is)```"+regexp.QuoteMeta(tag)+`\b.*?`+"```"))
	}
	strayPattern = regexp.MustCompile(`(?i)</?think>`)
}

// Filter incrementally removes thinking markup from a chunk stream. Feed
// returns the text safe to emit so far; Flush drains the tail at stream end.
// The zero value is not usable; call New.
type Filter struct {
	insideTag   string // tag name whose </tag> we are scanning for
	insideFence bool
	pending     string
}

func New() *Filter {
	return &Filter{}
}

// Feed consumes the next chunk and returns the emittable portion. Text that
// might be the prefix of a marker split across the chunk boundary is held
// back until the next call.
func (f *Filter) Feed(chunk string) string {
	text := f.pending + chunk
	f.pending = ""
	lower := asciiLower(text)

	var out strings.Builder
	pos := 0
	for pos < len(text) {
		switch {
		case f.insideFence:
			idx := strings.Index(lower[pos:], fence)
			if idx < 0 {
				// Keep enough tail to recognize a fence split across calls.
				f.pending = tail(text[pos:], len(fence)-1)
				return out.String()
			}
			pos += idx + len(fence)
			f.insideFence = false

		case f.insideTag != "":
			closing := closeMarkers[f.insideTag]
			idx := strings.Index(lower[pos:], closing)
			if idx < 0 {
				f.pending = tail(text[pos:], len(closing)-1)
				return out.String()
			}
			pos += idx + len(closing)
			f.insideTag = ""

		default:
			markerAt, marker, tag, isFence := findOpening(lower, pos)
			if markerAt < 0 {
				// No opening marker: emit everything except a window that
				// could still turn out to be the start of one.
				emitUpTo := len(text) - (maxMarkerLen - 1)
				if emitUpTo < pos {
					emitUpTo = pos
				}
				out.WriteString(text[pos:emitUpTo])
				f.pending = text[emitUpTo:]
				return out.String()
			}
			if isFence && markerAt+len(marker) == len(lower) {
				// "```tag" flush against the buffer end: the next byte
				// decides whether this is a fence or a longer word.
				out.WriteString(text[pos:markerAt])
				f.pending = text[markerAt:]
				return out.String()
			}
			out.WriteString(text[pos:markerAt])
			pos = markerAt + len(marker)
			if isFence {
				f.insideFence = true
			} else {
				f.insideTag = tag
			}
		}
	}
	return out.String()
}

// Flush returns any remaining plain text at stream end. Unterminated markup
// is assumed to have been thinking content and is dropped.
func (f *Filter) Flush() string {
	if f.insideTag != "" || f.insideFence {
		f.insideTag = ""
		f.insideFence = false
		f.pending = ""
		return ""
	}
	remaining := f.pending
	f.pending = ""
	return remaining
}

// findOpening locates the earliest opening tag or fence marker at or after
// pos in lower-cased text. A fence marker only counts when its tag is not a
// prefix of a longer word, except at the buffer end where the caller must
// wait for more input.
func findOpening(lower string, pos int) (at int, marker, tag string, isFence bool) {
	at = -1
	for i, open := range openMarkers {
		if idx := strings.Index(lower[pos:], open); idx >= 0 && (at < 0 || pos+idx < at) {
			at, marker, tag, isFence = pos+idx, open, Tags[i], false
		}
	}
	for i, fm := range fenceMarkers {
		search := pos
		for search < len(lower) {
			idx := strings.Index(lower[search:], fm)
			if idx < 0 {
				break
			}
			candidate := search + idx
			end := candidate + len(fm)
			if end < len(lower) && isWordByte(lower[end]) {
				// Longer language tag such as ```cotton; not a marker.
				search = candidate + 1
				continue
			}
			if at < 0 || candidate < at {
				at, marker, tag, isFence = candidate, fm, Tags[i], true
			}
			break
		}
	}
	return at, marker, tag, isFence
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func isWordByte(b byte) bool {
	return b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// asciiLower lowers A-Z only, preserving byte offsets for marker search.
func asciiLower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// FilterThoughts removes thinking markup from a complete response in one
// pass, used for non-streaming providers.
func FilterThoughts(text string) string {
	if text == "" {
		return text
	}
	cleaned := text
	for _, pattern := range tagPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	for _, pattern := range fencePatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	cleaned = strayPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
