package llmstream

import "unicode/utf8"

// UTF8Decoder is an incremental UTF-8 decoder tolerant of arbitrary chunk
// boundaries. It buffers the incomplete trailing bytes of a multi-byte
// sequence and emits only complete, valid UTF-8 text, so a character split
// across network chunks is never corrupted.
//
// The zero value is ready to use. A decoder belongs to exactly one stream
// and must not be shared across goroutines.
type UTF8Decoder struct {
	// buffer holds only the not-yet-decodable trailing bytes of the most
	// recent multi-byte sequence (0-3 bytes between calls). It never
	// holds a complete decodable sequence.
	buffer []byte
}

// NewUTF8Decoder creates a new incremental UTF-8 decoder.
func NewUTF8Decoder() *UTF8Decoder {
	return &UTF8Decoder{}
}

// Decode appends chunk to the internal buffer and returns all complete
// UTF-8 text now available. Returns the empty string if nothing new is
// completable. Identical input bytes decode identically regardless of how
// they are chunked.
func (d *UTF8Decoder) Decode(chunk []byte) string {
	if len(chunk) == 0 {
		return ""
	}

	d.buffer = append(d.buffer, chunk...)

	end := lastCompleteBoundary(d.buffer)
	if end == 0 {
		return ""
	}

	// The boundary scan only locates the end of the last sequence; a stray
	// invalid byte earlier in the buffer still makes the prefix undecodable.
	// Dropping it keeps the output free of replacement characters.
	if !utf8.Valid(d.buffer[:end]) {
		d.buffer = nil
		return ""
	}

	out := string(d.buffer[:end])
	d.buffer = append(d.buffer[:0], d.buffer[end:]...)
	return out
}

// Flush returns a best-effort decoding of whatever remains buffered and
// clears the buffer. Since no further bytes will ever arrive, a buffer
// holding an incomplete sequence decodes to the empty string: truncated
// trailing bytes are dropped, never substituted with a placeholder.
func (d *UTF8Decoder) Flush() string {
	if len(d.buffer) == 0 {
		return ""
	}
	remaining := d.buffer
	d.buffer = nil
	if !utf8.Valid(remaining) {
		return ""
	}
	return string(remaining)
}

// Reset clears the buffer unconditionally.
func (d *UTF8Decoder) Reset() {
	d.buffer = nil
}

// HasBufferedBytes reports whether bytes are waiting for completion.
func (d *UTF8Decoder) HasBufferedBytes() bool {
	return len(d.buffer) > 0
}

// BufferedByteCount returns the number of buffered bytes.
func (d *UTF8Decoder) BufferedByteCount() int {
	return len(d.buffer)
}

// lastCompleteBoundary scans backward from the end of buf to find the
// byte offset just past the last complete code point. Bytes from that
// offset on belong to an incomplete trailing sequence and must wait for
// the next chunk.
func lastCompleteBoundary(buf []byte) int {
	for i := len(buf) - 1; i >= 0; i-- {
		b := buf[i]

		// One-byte character, always complete.
		if b <= 0x7F {
			return i + 1
		}

		// Lead byte of a multi-byte sequence.
		if b&0xC0 == 0xC0 {
			var want int
			switch {
			case b&0xE0 == 0xC0:
				want = 2 // 110xxxxx
			case b&0xF0 == 0xE0:
				want = 3 // 1110xxxx
			case b&0xF8 == 0xF0:
				want = 4 // 11110xxx
			default:
				// Invalid lead byte; keep scanning backward.
				continue
			}

			if len(buf)-i >= want && continuationsValid(buf, i, want) {
				return i + want
			}

			// Incomplete sequence: the safe boundary, if any, lies in
			// the prefix before this lead byte.
			return lastCompleteBoundary(buf[:i])
		}

		// Continuation byte (10xxxxxx), keep looking backward.
	}
	return 0
}

func continuationsValid(buf []byte, start, length int) bool {
	for j := 1; j < length; j++ {
		if buf[start+j]&0xC0 != 0x80 {
			return false
		}
	}
	return true
}
