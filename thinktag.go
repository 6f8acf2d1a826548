package llmstream

import "strings"

// Think-tag markers used by models that inline reasoning in the text body.
const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkTagFilter incrementally separates one text channel into thinking
// text (inside <think>...</think> markers) and content text (outside).
// Marker characters never leak into either channel, even when a marker is
// split exactly at a frame boundary: a trailing partial marker is held
// back until the next call decides what it was.
//
// A filter belongs to one stream, and carries the marker state across
// frames for its converter.
type ThinkTagFilter struct {
	inThinking bool
	held       string
}

// NewThinkTagFilter creates a filter starting outside any marker.
func NewThinkTagFilter() *ThinkTagFilter {
	return &ThinkTagFilter{}
}

// Feed classifies text into the content and thinking channels, consuming
// any marker characters. Either return value may be empty.
func (f *ThinkTagFilter) Feed(text string) (content, thinking string) {
	if text == "" && f.held == "" {
		return "", ""
	}

	s := f.held + text
	f.held = ""

	var contentOut, thinkingOut strings.Builder
	for s != "" {
		marker := thinkOpen
		if f.inThinking {
			marker = thinkClose
		}

		if idx := strings.Index(s, marker); idx >= 0 {
			f.emit(s[:idx], &contentOut, &thinkingOut)
			f.inThinking = !f.inThinking
			s = s[idx+len(marker):]
			continue
		}

		// No complete marker: hold back a tail that could still become
		// one, emit the rest.
		keep := partialMarkerLen(s, marker)
		f.emit(s[:len(s)-keep], &contentOut, &thinkingOut)
		f.held = s[len(s)-keep:]
		break
	}

	return contentOut.String(), thinkingOut.String()
}

// Flush releases any held text at end-of-stream. A held prefix that never
// completed a marker was ordinary text all along, so it joins the channel
// that was active when it arrived.
func (f *ThinkTagFilter) Flush() (content, thinking string) {
	held := f.held
	f.held = ""
	if held == "" {
		return "", ""
	}
	if f.inThinking {
		return "", held
	}
	return held, ""
}

// InThinking reports whether the filter is currently inside a marker pair.
func (f *ThinkTagFilter) InThinking() bool {
	return f.inThinking
}

// Reset clears marker state and any held text.
func (f *ThinkTagFilter) Reset() {
	f.inThinking = false
	f.held = ""
}

func (f *ThinkTagFilter) emit(text string, content, thinking *strings.Builder) {
	if text == "" {
		return
	}
	if f.inThinking {
		thinking.WriteString(text)
	} else {
		content.WriteString(text)
	}
}

// partialMarkerLen returns the length of the longest suffix of s that is
// a proper prefix of marker, i.e. text that might complete into the
// marker once more frames arrive.
func partialMarkerLen(s, marker string) int {
	max := len(marker) - 1
	if len(s) < max {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if s[len(s)-n:] == marker[:n] {
			return n
		}
	}
	return 0
}
