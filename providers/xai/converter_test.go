package xai

import (
	"strings"
	"testing"

	llmstream "github.com/haowjy/meridian-stream-go"
)

func convert(t *testing.T, c *Converter, data string) []llmstream.StreamEvent {
	t.Helper()
	events, err := c.ConvertFrame(llmstream.Frame{Data: data})
	if err != nil {
		t.Fatalf("ConvertFrame error: %v", err)
	}
	return events
}

func TestConverter_ReasoningContent(t *testing.T) {
	c := NewConverterWithOptions(llmstream.Options{})

	events := convert(t, c,
		`{"id":"cmpl-1","object":"chat.completion.chunk","model":"grok-3-mini","choices":[{"index":0,"delta":{"role":"assistant","reasoning_content":"Weighing options"},"finish_reason":null}]}`)

	if len(events) != 2 {
		t.Fatalf("expected start + thinking, got %d events", len(events))
	}
	if events[0].Start == nil || events[0].Start.Provider != llmstream.ProviderXAI {
		t.Errorf("expected xai StreamStart, got %+v", events[0])
	}
	if events[1].Thinking == nil || events[1].Thinking.Text != "Weighing options" {
		t.Errorf("expected thinking delta, got %+v", events[1])
	}
}

func TestConverter_ContentAndFinish(t *testing.T) {
	c := NewConverterWithOptions(llmstream.Options{})

	convert(t, c,
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{"content":"Hi"},"finish_reason":null}]}`)
	convert(t, c,
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)

	events := convert(t, c, "[DONE]")
	if len(events) != 1 || events[0].End == nil {
		t.Fatalf("expected end event, got %+v", events)
	}
	if events[0].End.Reason != llmstream.FinishStop {
		t.Errorf("Reason = %q", events[0].End.Reason)
	}
	if events[0].End.Model != "grok-beta" {
		t.Errorf("Model = %q", events[0].End.Model)
	}
}

func TestConverter_ThinkTagsSplitAcrossChunks(t *testing.T) {
	c := NewConverterWithOptions(llmstream.Options{StripThinkTags: true})

	chunks := []string{
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{"content":"<th"},"finish_reason":null}]}`,
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{"content":"ink>deep"},"finish_reason":null}]}`,
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{"content":" thought</think>answer"},"finish_reason":null}]}`,
	}

	var content, thinking strings.Builder
	for _, chunk := range chunks {
		for _, ev := range convert(t, c, chunk) {
			if ev.Content != nil {
				content.WriteString(ev.Content.Text)
			}
			if ev.Thinking != nil {
				thinking.WriteString(ev.Thinking.Text)
			}
		}
	}
	for _, ev := range convert(t, c, "[DONE]") {
		if ev.Content != nil {
			content.WriteString(ev.Content.Text)
		}
		if ev.Thinking != nil {
			thinking.WriteString(ev.Thinking.Text)
		}
	}

	if content.String() != "answer" {
		t.Errorf("content = %q, want 'answer'", content.String())
	}
	if thinking.String() != "deep thought" {
		t.Errorf("thinking = %q, want 'deep thought'", thinking.String())
	}
}

func TestConverter_ToolCallFragments(t *testing.T) {
	c := NewConverterWithOptions(llmstream.Options{})

	events := convert(t, c,
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"search","arguments":""}}]},"finish_reason":null}]}`)
	var first *llmstream.ToolCallDelta
	for _, ev := range events {
		if ev.ToolCall != nil {
			first = ev.ToolCall
		}
	}
	if first == nil || first.ID != "call_1" || first.Name == nil || *first.Name != "search" {
		t.Fatalf("unexpected first fragment: %+v", first)
	}

	// Later fragments omit the id and resolve it by index.
	events = convert(t, c,
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\":\"go\"}"}}]},"finish_reason":null}]}`)
	var frag *llmstream.ToolCallDelta
	for _, ev := range events {
		if ev.ToolCall != nil {
			frag = ev.ToolCall
		}
	}
	if frag == nil || frag.ID != "call_1" {
		t.Fatalf("fragment should inherit id by index, got %+v", frag)
	}
	if frag.ArgsDelta == nil || *frag.ArgsDelta != `{"q":"go"}` {
		t.Errorf("ArgsDelta = %v", frag.ArgsDelta)
	}
}

func TestConverter_UsageWithReasoningTokens(t *testing.T) {
	c := NewConverterWithOptions(llmstream.Options{})

	events := convert(t, c,
		`{"id":"cmpl-1","model":"grok-3-mini","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42,"completion_tokens_details":{"reasoning_tokens":18}}}`)

	var usage *llmstream.Usage
	for _, ev := range events {
		if ev.Usage != nil {
			usage = ev.Usage
		}
	}
	if usage == nil {
		t.Fatal("expected usage event")
	}
	if usage.Prompt == nil || *usage.Prompt != 12 {
		t.Errorf("Prompt = %v", usage.Prompt)
	}
	if usage.Completion == nil || *usage.Completion != 30 {
		t.Errorf("Completion = %v", usage.Completion)
	}
	if usage.Reasoning == nil || *usage.Reasoning != 18 {
		t.Errorf("Reasoning = %v", usage.Reasoning)
	}
}

func TestConverter_UpstreamError(t *testing.T) {
	c := NewConverterWithOptions(llmstream.Options{})

	events := convert(t, c,
		`{"error":{"code":"rate_limit_exceeded","message":"Too many requests"}}`)
	if len(events) != 1 || events[0].Err == nil {
		t.Fatalf("expected error event, got %+v", events)
	}
	if !llmstream.IsUpstreamError(events[0].Err.Err) {
		t.Errorf("expected UpstreamError, got %v", events[0].Err.Err)
	}
}

func TestConverter_FinishWithoutDone(t *testing.T) {
	c := NewConverterWithOptions(llmstream.Options{})
	convert(t, c,
		`{"id":"cmpl-1","model":"grok-beta","choices":[{"index":0,"delta":{"content":"partial"},"finish_reason":null}]}`)

	events := c.Finish()
	if len(events) != 1 || events[0].End == nil {
		t.Fatalf("expected synthesized end event, got %+v", events)
	}

	if extra := c.Finish(); len(extra) != 0 {
		t.Errorf("second Finish should emit nothing, got %+v", extra)
	}
}
