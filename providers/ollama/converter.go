// Package ollama converts Ollama's newline-delimited JSON chat stream
// into canonical stream events. Each line is a self-contained JSON
// document; the final line sets done and carries token counts.
package ollama

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	llmstream "github.com/haowjy/meridian-stream-go"
)

// doneReasons maps Ollama done_reason values to the canonical
// vocabulary. "load" and "unload" lines never terminate a chat stream,
// so they are absent here and fall through to the raw form.
var doneReasons = map[string]llmstream.FinishReason{
	"stop":   llmstream.FinishStop,
	"length": llmstream.FinishLength,
}

// Converter translates Ollama NDJSON lines into canonical events.
// Create one per stream with NewConverter.
type Converter struct {
	opts llmstream.Options

	started bool
	done    bool
	model   string

	// Models without native thinking support inline <think> tags in the
	// content stream; the filter separates them out and holds partial
	// markers across line boundaries.
	thinkFilter *llmstream.ThinkTagFilter
}

// NewConverter creates an Ollama converter using the registered
// provider options.
func NewConverter() *Converter {
	return NewConverterWithOptions(llmstream.OptionsFor(llmstream.ProviderOllama))
}

// NewConverterWithOptions creates a converter with explicit options.
func NewConverterWithOptions(opts llmstream.Options) *Converter {
	c := &Converter{opts: opts}
	if opts.StripThinkTags {
		c.thinkFilter = llmstream.NewThinkTagFilter()
	}
	return c
}

// Provider returns the provider identifier.
func (c *Converter) Provider() llmstream.ProviderID {
	return llmstream.ProviderOllama
}

// UsagePolicy reports snapshot semantics: the final line carries the
// complete counts for the whole generation.
func (c *Converter) UsagePolicy() llmstream.UsagePolicy {
	return llmstream.UsageReplace
}

// ConvertFrame turns one NDJSON line into canonical events.
func (c *Converter) ConvertFrame(frame llmstream.Frame) ([]llmstream.StreamEvent, error) {
	var chunk ChatResponse
	if err := json.Unmarshal([]byte(frame.Data), &chunk); err != nil {
		if msg := gjson.Get(frame.Data, "error").String(); msg != "" {
			return []llmstream.StreamEvent{c.upstreamError(frame.Data, msg)}, nil
		}
		return nil, &llmstream.FrameParseError{
			Provider: c.Provider(),
			Frame:    frame.Data,
			Reason:   "not an Ollama chat line",
			Err:      err,
		}
	}

	// Error lines parse cleanly into an empty ChatResponse, so probe
	// the raw document as well.
	if msg := gjson.Get(frame.Data, "error").String(); msg != "" {
		return []llmstream.StreamEvent{c.upstreamError(frame.Data, msg)}, nil
	}

	var events []llmstream.StreamEvent

	if !c.started {
		c.started = true
		c.model = chunk.Model
		events = append(events, llmstream.StreamEvent{Start: &llmstream.StreamStart{
			ID:       uuid.NewString(),
			Model:    c.modelOrDefault(chunk.Model),
			Provider: c.Provider(),
		}})
	}

	events = append(events, c.convertMessage(chunk.Message)...)

	if chunk.Done {
		c.done = true
		events = append(events, c.flushFilter()...)
		if usage := convertUsage(chunk); usage != nil {
			events = append(events, llmstream.StreamEvent{Usage: usage})
		}
		reason := llmstream.FinishStop
		if chunk.DoneReason != "" {
			reason = llmstream.MapFinishReason(doneReasons, chunk.DoneReason)
		}
		events = append(events, llmstream.EndEvent(reason, c.modelOrDefault(chunk.Model)))
	}

	return events, nil
}

// Finish closes out a stream whose transport ended before a done line.
func (c *Converter) Finish() []llmstream.StreamEvent {
	if c.done {
		return nil
	}
	c.done = true

	events := c.flushFilter()
	events = append(events, llmstream.EndEvent(llmstream.FinishStop, c.modelOrDefault("")))
	return events
}

func (c *Converter) convertMessage(msg Message) []llmstream.StreamEvent {
	var events []llmstream.StreamEvent

	if msg.Thinking != "" {
		events = append(events, llmstream.ThinkingEvent(msg.Thinking))
	}

	if msg.Content != "" {
		if c.thinkFilter != nil {
			content, thinking := c.thinkFilter.Feed(msg.Content)
			if thinking != "" {
				events = append(events, llmstream.ThinkingEvent(thinking))
			}
			if content != "" {
				events = append(events, llmstream.ContentEvent(content))
			}
		} else {
			events = append(events, llmstream.ContentEvent(msg.Content))
		}
	}

	for i, call := range msg.ToolCalls {
		events = append(events, c.convertToolCall(i, call))
	}

	return events
}

// convertToolCall turns a complete Ollama call into a single fragment.
// Ollama assigns no call ids, so one is synthesized; the arguments
// arrive pre-parsed and are re-encoded to the canonical JSON form.
func (c *Converter) convertToolCall(index int, call ToolCall) llmstream.StreamEvent {
	name := call.Function.Name

	args := "{}"
	if call.Function.Arguments != nil {
		if encoded, err := json.Marshal(call.Function.Arguments); err == nil {
			args = string(encoded)
		}
	}

	idx := index
	return llmstream.StreamEvent{ToolCall: &llmstream.ToolCallDelta{
		ID:        "call_" + uuid.NewString(),
		Name:      &name,
		ArgsDelta: &args,
		Index:     &idx,
	}}
}

func (c *Converter) flushFilter() []llmstream.StreamEvent {
	if c.thinkFilter == nil {
		return nil
	}
	content, thinking := c.thinkFilter.Flush()

	var events []llmstream.StreamEvent
	if thinking != "" {
		events = append(events, llmstream.ThinkingEvent(thinking))
	}
	if content != "" {
		events = append(events, llmstream.ContentEvent(content))
	}
	return events
}

func convertUsage(chunk ChatResponse) *llmstream.Usage {
	if chunk.PromptEvalCount == nil && chunk.EvalCount == nil {
		return nil
	}

	usage := &llmstream.Usage{}
	if chunk.PromptEvalCount != nil {
		v := *chunk.PromptEvalCount
		usage.Prompt = &v
	}
	if chunk.EvalCount != nil {
		v := *chunk.EvalCount
		usage.Completion = &v
	}
	if chunk.PromptEvalCount != nil && chunk.EvalCount != nil {
		total := *chunk.PromptEvalCount + *chunk.EvalCount
		usage.Total = &total
	}
	return usage
}

func (c *Converter) upstreamError(frame, message string) llmstream.StreamEvent {
	return llmstream.ErrorEvent(c.Provider(), frame, &llmstream.UpstreamError{
		Provider: c.Provider(),
		Message:  message,
	})
}

func (c *Converter) modelOrDefault(model string) string {
	if model != "" {
		return model
	}
	if c.model != "" {
		return c.model
	}
	return c.opts.DefaultModel
}
