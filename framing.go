package llmstream

import "strings"

// Frame is one complete protocol unit: a blank-line-delimited event-stream
// block, or one JSON document from a line-delimited stream. A frame is
// always fully formed text, never partial.
type Frame struct {
	// Event is the event-stream event name, empty for line-JSON framing
	// and for blocks that carry no "event:" field.
	Event string

	// Data is the frame payload: JSON text, or a literal sentinel such
	// as "[DONE]". Multiple data lines in one block are joined by "\n".
	Data string
}

// FrameSplitter turns decoded text into complete, self-contained frames.
// It operates purely on decoded text (never raw bytes) and buffers any
// trailing partial line or block across calls, so a frame split exactly
// at a chunk boundary is still recognized as one frame.
//
// A splitter belongs to exactly one stream and must not be shared.
type FrameSplitter interface {
	// Split appends text and returns all frames that are now complete.
	Split(text string) []Frame

	// Flush returns a frame for any buffered remainder at end-of-stream,
	// treating it as complete since no further text will arrive.
	Flush() []Frame
}

// SSESplitter splits server-sent-event framing: blocks separated by a
// blank line, payload lines carrying "data:" (and optionally "event:")
// prefixes, comment lines starting with ":".
type SSESplitter struct {
	buf strings.Builder
}

// NewSSESplitter creates a splitter for blank-line-delimited event blocks.
func NewSSESplitter() *SSESplitter {
	return &SSESplitter{}
}

// Split appends decoded text and returns every block completed by it.
func (s *SSESplitter) Split(text string) []Frame {
	if text == "" {
		return nil
	}
	s.buf.WriteString(text)

	pending := s.buf.String()
	var frames []Frame
	for {
		sep, width := findBlankLine(pending)
		if sep < 0 {
			break
		}
		block := pending[:sep]
		pending = pending[sep+width:]
		if frame, ok := parseSSEBlock(block); ok {
			frames = append(frames, frame)
		}
	}

	s.buf.Reset()
	s.buf.WriteString(pending)
	return frames
}

// Flush parses any buffered remainder as a final block.
func (s *SSESplitter) Flush() []Frame {
	pending := s.buf.String()
	s.buf.Reset()
	if strings.TrimSpace(pending) == "" {
		return nil
	}
	if frame, ok := parseSSEBlock(pending); ok {
		return []Frame{frame}
	}
	return nil
}

// findBlankLine locates the first blank-line separator ("\n\n" or
// "\r\n\r\n"), returning its offset and width, or -1 if none is complete.
func findBlankLine(s string) (int, int) {
	lf := strings.Index(s, "\n\n")
	crlf := strings.Index(s, "\r\n\r\n")
	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf, 4
	default:
		return lf, 2
	}
}

// parseSSEBlock parses one delimited block into a frame. Blocks carrying
// only comments or no data field produce no frame.
func parseSSEBlock(block string) (Frame, bool) {
	var frame Frame
	var dataLines []string

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "" || strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event:"):
			frame.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// Other fields (id:, retry:) are reconnection hints; the
		// transport owns reconnection, so they carry nothing for us.
	}

	if len(dataLines) == 0 {
		return Frame{}, false
	}
	frame.Data = strings.Join(dataLines, "\n")
	return frame, true
}

// LineSplitter splits line-JSON framing: each complete line is one JSON
// document; blank lines are skipped.
type LineSplitter struct {
	buf strings.Builder
}

// NewLineSplitter creates a splitter for newline-delimited JSON streams.
func NewLineSplitter() *LineSplitter {
	return &LineSplitter{}
}

// Split appends decoded text and returns every line completed by it.
func (s *LineSplitter) Split(text string) []Frame {
	if text == "" {
		return nil
	}
	s.buf.WriteString(text)

	pending := s.buf.String()
	last := strings.LastIndexByte(pending, '\n')
	if last < 0 {
		return nil
	}

	complete := pending[:last]
	remainder := pending[last+1:]
	s.buf.Reset()
	s.buf.WriteString(remainder)

	var frames []Frame
	for _, line := range strings.Split(complete, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		frames = append(frames, Frame{Data: line})
	}
	return frames
}

// Flush returns the trailing unterminated line, if any, as a final frame.
func (s *LineSplitter) Flush() []Frame {
	pending := s.buf.String()
	s.buf.Reset()
	if strings.TrimSpace(pending) == "" {
		return nil
	}
	return []Frame{{Data: strings.TrimSuffix(pending, "\r")}}
}
