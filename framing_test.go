package llmstream

import "testing"

func TestSSESplitter_CompleteBlock(t *testing.T) {
	s := NewSSESplitter()

	frames := s.Split("data: {\"x\":1}\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Data != `{"x":1}` {
		t.Errorf("Data = %q", frames[0].Data)
	}
	if frames[0].Event != "" {
		t.Errorf("Event = %q, want empty", frames[0].Event)
	}
}

func TestSSESplitter_SplitMidField(t *testing.T) {
	s := NewSSESplitter()

	if frames := s.Split("da"); len(frames) != 0 {
		t.Fatalf("partial field should emit nothing, got %+v", frames)
	}
	if frames := s.Split("ta: {\"x\":1}\n"); len(frames) != 0 {
		t.Fatalf("block without separator should emit nothing, got %+v", frames)
	}
	frames := s.Split("\n")
	if len(frames) != 1 || frames[0].Data != `{"x":1}` {
		t.Fatalf("completing the separator should emit the frame, got %+v", frames)
	}
}

func TestSSESplitter_EventField(t *testing.T) {
	s := NewSSESplitter()

	frames := s.Split("event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Event != "message_start" {
		t.Errorf("Event = %q", frames[0].Event)
	}
}

func TestSSESplitter_MultipleDataLines(t *testing.T) {
	s := NewSSESplitter()

	frames := s.Split("data: line1\ndata: line2\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Data != "line1\nline2" {
		t.Errorf("Data = %q, want joined lines", frames[0].Data)
	}
}

func TestSSESplitter_CRLF(t *testing.T) {
	s := NewSSESplitter()

	frames := s.Split("data: {\"x\":1}\r\n\r\ndata: {\"x\":2}\r\n\r\n")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Data != `{"x":1}` || frames[1].Data != `{"x":2}` {
		t.Errorf("frames = %+v", frames)
	}
}

func TestSSESplitter_CommentsAndKeepalives(t *testing.T) {
	s := NewSSESplitter()

	frames := s.Split(": keep-alive\n\ndata: real\n\n")
	if len(frames) != 1 {
		t.Fatalf("comment-only block should be dropped, got %d frames", len(frames))
	}
	if frames[0].Data != "real" {
		t.Errorf("Data = %q", frames[0].Data)
	}
}

func TestSSESplitter_IgnoresIDAndRetry(t *testing.T) {
	s := NewSSESplitter()

	frames := s.Split("id: 42\nretry: 1000\ndata: payload\n\n")
	if len(frames) != 1 || frames[0].Data != "payload" {
		t.Fatalf("expected payload frame, got %+v", frames)
	}
}

func TestSSESplitter_Flush(t *testing.T) {
	s := NewSSESplitter()
	s.Split("data: trailing")

	frames := s.Flush()
	if len(frames) != 1 || frames[0].Data != "trailing" {
		t.Fatalf("Flush should parse the unterminated block, got %+v", frames)
	}
	if extra := s.Flush(); len(extra) != 0 {
		t.Errorf("second Flush should emit nothing, got %+v", extra)
	}
}

func TestLineSplitter_CompleteLines(t *testing.T) {
	s := NewLineSplitter()

	frames := s.Split("{\"a\":1}\n{\"a\":2}\n")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Data != `{"a":1}` || frames[1].Data != `{"a":2}` {
		t.Errorf("frames = %+v", frames)
	}
}

func TestLineSplitter_PartialLine(t *testing.T) {
	s := NewLineSplitter()

	if frames := s.Split(`{"a":`); len(frames) != 0 {
		t.Fatalf("partial line should emit nothing, got %+v", frames)
	}
	frames := s.Split("1}\n")
	if len(frames) != 1 || frames[0].Data != `{"a":1}` {
		t.Fatalf("completing the line should emit it whole, got %+v", frames)
	}
}

func TestLineSplitter_CRLFAndBlankLines(t *testing.T) {
	s := NewLineSplitter()

	frames := s.Split("{\"a\":1}\r\n\r\n{\"a\":2}\n")
	if len(frames) != 2 {
		t.Fatalf("blank lines should be skipped, got %d frames", len(frames))
	}
	if frames[0].Data != `{"a":1}` || frames[1].Data != `{"a":2}` {
		t.Errorf("frames = %+v", frames)
	}
}

func TestLineSplitter_Flush(t *testing.T) {
	s := NewLineSplitter()
	s.Split(`{"done":true}`)

	frames := s.Flush()
	if len(frames) != 1 || frames[0].Data != `{"done":true}` {
		t.Fatalf("Flush should return the unterminated line, got %+v", frames)
	}
	if extra := s.Flush(); len(extra) != 0 {
		t.Errorf("second Flush should emit nothing, got %+v", extra)
	}
}
