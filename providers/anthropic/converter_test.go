package anthropic

import (
	"errors"
	"testing"

	llmstream "github.com/haowjy/meridian-stream-go"
)

func convert(t *testing.T, c *Converter, event, data string) []llmstream.StreamEvent {
	t.Helper()
	events, err := c.ConvertFrame(llmstream.Frame{Event: event, Data: data})
	if err != nil {
		t.Fatalf("ConvertFrame(%s) error: %v", event, err)
	}
	return events
}

func TestConverter_MessageStart(t *testing.T) {
	c := NewConverter()

	events := convert(t, c, "message_start",
		`{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[],"usage":{"input_tokens":25,"output_tokens":1,"cache_read_input_tokens":12}}}`)

	if len(events) != 2 {
		t.Fatalf("expected 2 events (start, usage), got %d", len(events))
	}
	start := events[0].Start
	if start == nil {
		t.Fatal("first event should be StreamStart")
	}
	if start.ID != "msg_01" {
		t.Errorf("ID = %q, want msg_01", start.ID)
	}
	if start.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", start.Model)
	}
	if start.Provider != llmstream.ProviderAnthropic {
		t.Errorf("Provider = %q", start.Provider)
	}

	usage := events[1].Usage
	if usage == nil {
		t.Fatal("second event should be Usage")
	}
	if usage.Prompt == nil || *usage.Prompt != 25 {
		t.Errorf("Prompt = %v, want 25", usage.Prompt)
	}
	if usage.CacheRead == nil || *usage.CacheRead != 12 {
		t.Errorf("CacheRead = %v, want 12", usage.CacheRead)
	}
	if usage.Completion != nil {
		t.Errorf("Completion should be absent in message_start usage, got %v", *usage.Completion)
	}
}

func TestConverter_MessageStartZeroUsage(t *testing.T) {
	// Zero token counts mean the fields were absent; no usage event is
	// emitted for them, matching the message_delta treatment.
	c := NewConverter()

	events := convert(t, c, "message_start",
		`{"type":"message_start","message":{"id":"msg_02","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[],"usage":{"input_tokens":0,"output_tokens":0}}}`)

	if len(events) != 1 {
		t.Fatalf("expected only the start event, got %d events", len(events))
	}
	if events[0].Start == nil {
		t.Fatal("first event should be StreamStart")
	}
}

func TestConverter_TextDeltas(t *testing.T) {
	c := NewConverter()

	convert(t, c, "message_start",
		`{"type":"message_start","message":{"id":"msg_01","model":"claude-sonnet-4-20250514","usage":{"input_tokens":5}}}`)
	convert(t, c, "content_block_start",
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)

	events := convert(t, c, "content_block_delta",
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`)
	if len(events) != 1 || events[0].Content == nil {
		t.Fatalf("expected one content event, got %+v", events)
	}
	if events[0].Content.Text != "Hello" {
		t.Errorf("Text = %q", events[0].Content.Text)
	}
	if events[0].Content.Index == nil || *events[0].Content.Index != 0 {
		t.Errorf("Index = %v, want 0", events[0].Content.Index)
	}
}

func TestConverter_ThinkingDeltas(t *testing.T) {
	c := NewConverter()

	events := convert(t, c, "content_block_delta",
		`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me consider"}}`)
	if len(events) != 1 || events[0].Thinking == nil {
		t.Fatalf("expected one thinking event, got %+v", events)
	}
	if events[0].Thinking.Text != "Let me consider" {
		t.Errorf("Text = %q", events[0].Thinking.Text)
	}

	// Signature deltas carry no displayable payload.
	events = convert(t, c, "content_block_delta",
		`{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"EqQBCg"}}`)
	if len(events) != 0 {
		t.Errorf("signature_delta should produce no events, got %+v", events)
	}
}

func TestConverter_ToolUse(t *testing.T) {
	c := NewConverter()

	events := convert(t, c, "content_block_start",
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_01","name":"get_weather","input":{}}}`)
	if len(events) != 1 || events[0].ToolCall == nil {
		t.Fatalf("expected one tool event, got %+v", events)
	}
	tc := events[0].ToolCall
	if tc.ID != "toolu_01" {
		t.Errorf("ID = %q", tc.ID)
	}
	if tc.Name == nil || *tc.Name != "get_weather" {
		t.Errorf("Name = %v", tc.Name)
	}
	if tc.Index == nil || *tc.Index != 1 {
		t.Errorf("Index = %v", tc.Index)
	}

	// Argument fragments resolve the call id through the block index.
	events = convert(t, c, "content_block_delta",
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`)
	if len(events) != 1 || events[0].ToolCall == nil {
		t.Fatalf("expected one tool fragment, got %+v", events)
	}
	frag := events[0].ToolCall
	if frag.ID != "toolu_01" {
		t.Errorf("fragment ID = %q, want toolu_01", frag.ID)
	}
	if frag.ArgsDelta == nil || *frag.ArgsDelta != `{"city":` {
		t.Errorf("ArgsDelta = %v", frag.ArgsDelta)
	}
	if frag.Name != nil {
		t.Errorf("fragments after the first should not repeat the name")
	}
}

func TestConverter_ToolFragmentWithoutStart(t *testing.T) {
	c := NewConverter()

	events := convert(t, c, "content_block_delta",
		`{"type":"content_block_delta","index":3,"delta":{"type":"input_json_delta","partial_json":"{}"}}`)
	if len(events) != 1 || events[0].Err == nil {
		t.Fatalf("expected an error event, got %+v", events)
	}
	if !llmstream.IsProtocolViolation(events[0].Err.Err) {
		t.Errorf("expected protocol violation, got %v", events[0].Err.Err)
	}
}

func TestConverter_MessageDeltaAndStop(t *testing.T) {
	c := NewConverter()
	convert(t, c, "message_start",
		`{"type":"message_start","message":{"id":"msg_01","model":"claude-sonnet-4-20250514","usage":{"input_tokens":5}}}`)

	events := convert(t, c, "message_delta",
		`{"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":42}}`)
	if len(events) != 1 || events[0].Usage == nil {
		t.Fatalf("expected one usage event, got %+v", events)
	}
	if events[0].Usage.Completion == nil || *events[0].Usage.Completion != 42 {
		t.Errorf("Completion = %v, want 42", events[0].Usage.Completion)
	}

	events = convert(t, c, "message_stop", `{"type":"message_stop"}`)
	if len(events) != 1 || events[0].End == nil {
		t.Fatalf("expected end event, got %+v", events)
	}
	if events[0].End.Reason != llmstream.FinishLength {
		t.Errorf("Reason = %q, want %q", events[0].End.Reason, llmstream.FinishLength)
	}
	if events[0].End.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", events[0].End.Model)
	}

	// Transport-level completion after message_stop is a no-op.
	if extra := c.Finish(); len(extra) != 0 {
		t.Errorf("Finish after message_stop should emit nothing, got %+v", extra)
	}
}

func TestConverter_StopReasonMapping(t *testing.T) {
	tests := []struct {
		upstream string
		want     llmstream.FinishReason
	}{
		{"end_turn", llmstream.FinishStop},
		{"max_tokens", llmstream.FinishLength},
		{"tool_use", llmstream.FinishToolCalls},
		{"stop_sequence", llmstream.FinishStopSequence},
		{"refusal", llmstream.FinishContentFilter},
		{"pause_turn", llmstream.FinishOther("pause_turn")},
	}

	for _, tt := range tests {
		t.Run(tt.upstream, func(t *testing.T) {
			c := NewConverter()
			convert(t, c, "message_delta",
				`{"type":"message_delta","delta":{"stop_reason":"`+tt.upstream+`"},"usage":{"output_tokens":1}}`)
			events := convert(t, c, "message_stop", `{"type":"message_stop"}`)
			if len(events) != 1 || events[0].End == nil {
				t.Fatalf("expected end event, got %+v", events)
			}
			if events[0].End.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", events[0].End.Reason, tt.want)
			}
		})
	}
}

func TestConverter_FinishWithoutMessageStop(t *testing.T) {
	c := NewConverter()
	convert(t, c, "message_start",
		`{"type":"message_start","message":{"id":"msg_01","model":"claude-sonnet-4-20250514","usage":{"input_tokens":5}}}`)

	events := c.Finish()
	if len(events) != 1 || events[0].End == nil {
		t.Fatalf("expected synthesized end event, got %+v", events)
	}
	if events[0].End.Reason != llmstream.FinishStop {
		t.Errorf("Reason = %q, want stop", events[0].End.Reason)
	}
}

func TestConverter_ErrorEvent(t *testing.T) {
	c := NewConverter()

	events := convert(t, c, "error",
		`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	if len(events) != 1 || events[0].Err == nil {
		t.Fatalf("expected error event, got %+v", events)
	}

	var upstream *llmstream.UpstreamError
	if !errors.As(events[0].Err.Err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", events[0].Err.Err)
	}
	if upstream.Code != "overloaded_error" {
		t.Errorf("Code = %q", upstream.Code)
	}
	if upstream.Message != "Overloaded" {
		t.Errorf("Message = %q", upstream.Message)
	}
}

func TestConverter_PingAndBlockStop(t *testing.T) {
	c := NewConverter()

	if events := convert(t, c, "ping", `{"type":"ping"}`); len(events) != 0 {
		t.Errorf("ping should produce no events, got %+v", events)
	}
	if events := convert(t, c, "content_block_stop", `{"type":"content_block_stop","index":0}`); len(events) != 0 {
		t.Errorf("content_block_stop should produce no events, got %+v", events)
	}
}

func TestConverter_MalformedFrame(t *testing.T) {
	c := NewConverter()

	_, err := c.ConvertFrame(llmstream.Frame{Event: "message_delta", Data: `{"type":`})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !llmstream.IsFrameParseError(err) {
		t.Errorf("expected FrameParseError, got %T", err)
	}
}
