// Package anthropic converts Anthropic's typed SSE event stream
// (message_start, content_block_start, content_block_delta, message_delta,
// message_stop) into canonical stream events. Frame payloads unmarshal
// into the SDK's stream-event unions, so wire drift is the SDK's problem,
// not ours.
package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	llmstream "github.com/haowjy/meridian-stream-go"
)

// stopReasons maps Anthropic stop_reason values to the canonical
// vocabulary. Immutable per-converter data.
var stopReasons = map[string]llmstream.FinishReason{
	"end_turn":      llmstream.FinishStop,
	"max_tokens":    llmstream.FinishLength,
	"tool_use":      llmstream.FinishToolCalls,
	"stop_sequence": llmstream.FinishStopSequence,
	"refusal":       llmstream.FinishContentFilter,
}

// Converter translates Anthropic stream-event frames into canonical
// events. Create one per stream with NewConverter.
type Converter struct {
	opts llmstream.Options

	started bool
	stopped bool
	model   string
	finish  llmstream.FinishReason

	// input_json_delta frames carry only a block index; the call id and
	// name arrive once, in the block's content_block_start.
	toolByIndex map[int]toolIdentity
}

type toolIdentity struct {
	id   string
	name string
}

// NewConverter creates an Anthropic converter using the registered
// provider options.
func NewConverter() *Converter {
	return NewConverterWithOptions(llmstream.OptionsFor(llmstream.ProviderAnthropic))
}

// NewConverterWithOptions creates a converter with explicit options.
func NewConverterWithOptions(opts llmstream.Options) *Converter {
	return &Converter{
		opts:        opts,
		toolByIndex: make(map[int]toolIdentity),
	}
}

// Provider returns the provider identifier.
func (c *Converter) Provider() llmstream.ProviderID {
	return llmstream.ProviderAnthropic
}

// UsagePolicy reports snapshot semantics: message_start carries input
// tokens and each message_delta carries a cumulative output-token
// snapshot, so present fields replace earlier values.
func (c *Converter) UsagePolicy() llmstream.UsagePolicy {
	return llmstream.UsageReplace
}

// ConvertFrame turns one SSE block into canonical events.
//
// Anthropic stream events include:
//   - message_start: message metadata (id, model) plus prompt-side usage
//   - content_block_start: new block (index, type; id+name for tool_use)
//   - content_block_delta: text_delta, thinking_delta, signature_delta,
//     input_json_delta for the block at index
//   - content_block_stop: block finished
//   - message_delta: stop_reason plus cumulative output usage
//   - message_stop: streaming complete
//   - ping: keep-alive, a documented no-op
//   - error: terminal error payload
func (c *Converter) ConvertFrame(frame llmstream.Frame) ([]llmstream.StreamEvent, error) {
	if frame.Event == "ping" {
		return nil, nil
	}
	if frame.Event == "error" {
		return []llmstream.StreamEvent{c.errorEvent(frame.Data)}, nil
	}

	var event anthropic.MessageStreamEventUnion
	if err := json.Unmarshal([]byte(frame.Data), &event); err != nil {
		return nil, &llmstream.FrameParseError{
			Provider: c.Provider(),
			Frame:    frame.Data,
			Reason:   "not an Anthropic stream event",
			Err:      err,
		}
	}

	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return c.convertMessageStart(e), nil

	case anthropic.ContentBlockStartEvent:
		return c.convertBlockStart(e), nil

	case anthropic.ContentBlockDeltaEvent:
		return c.convertBlockDelta(e), nil

	case anthropic.ContentBlockStopEvent:
		// Block completion is the accumulator's business.
		return nil, nil

	case anthropic.MessageDeltaEvent:
		return c.convertMessageDelta(e), nil

	case anthropic.MessageStopEvent:
		c.stopped = true
		return []llmstream.StreamEvent{llmstream.EndEvent(c.finishOrStop(), c.model)}, nil

	default:
		// The event stream grows new types; the "error" event name is the
		// only one that must not pass silently, and it is handled above.
		return nil, nil
	}
}

// Finish closes out a stream whose transport ended before message_stop.
func (c *Converter) Finish() []llmstream.StreamEvent {
	if c.stopped {
		return nil
	}
	c.stopped = true
	return []llmstream.StreamEvent{llmstream.EndEvent(c.finishOrStop(), c.model)}
}

func (c *Converter) convertMessageStart(e anthropic.MessageStartEvent) []llmstream.StreamEvent {
	c.model = string(e.Message.Model)

	var events []llmstream.StreamEvent
	if !c.started {
		c.started = true
		events = append(events, llmstream.StreamEvent{Start: &llmstream.StreamStart{
			ID:       e.Message.ID,
			Model:    c.modelOrDefault(),
			Provider: c.Provider(),
		}})
	}

	// message_start reports the prompt side of usage; output tokens
	// arrive later in message_delta snapshots. Zero counts mean the field
	// was absent, same as in message_delta.
	usage := &llmstream.Usage{}
	if e.Message.Usage.InputTokens > 0 {
		v := int(e.Message.Usage.InputTokens)
		usage.Prompt = &v
	}
	if e.Message.Usage.CacheReadInputTokens > 0 {
		v := int(e.Message.Usage.CacheReadInputTokens)
		usage.CacheRead = &v
	}
	if e.Message.Usage.CacheCreationInputTokens > 0 {
		v := int(e.Message.Usage.CacheCreationInputTokens)
		usage.CacheWrite = &v
	}
	if !usage.IsZero() {
		events = append(events, llmstream.StreamEvent{Usage: usage})
	}

	return events
}

func (c *Converter) convertBlockStart(e anthropic.ContentBlockStartEvent) []llmstream.StreamEvent {
	index := int(e.Index)

	switch e.ContentBlock.Type {
	case "tool_use", "server_tool_use":
		identity := toolIdentity{id: e.ContentBlock.ID, name: e.ContentBlock.Name}
		c.toolByIndex[index] = identity

		name := identity.name
		return []llmstream.StreamEvent{{ToolCall: &llmstream.ToolCallDelta{
			ID:    identity.id,
			Name:  &name,
			Index: &index,
		}}}

	default:
		// text and thinking blocks open implicitly with their first delta.
		return nil
	}
}

func (c *Converter) convertBlockDelta(e anthropic.ContentBlockDeltaEvent) []llmstream.StreamEvent {
	index := int(e.Index)

	switch e.Delta.Type {
	case "text_delta":
		if e.Delta.Text == "" {
			return nil
		}
		return []llmstream.StreamEvent{llmstream.ContentEventAt(e.Delta.Text, index)}

	case "thinking_delta":
		if e.Delta.Thinking == "" {
			return nil
		}
		return []llmstream.StreamEvent{llmstream.ThinkingEvent(e.Delta.Thinking)}

	case "signature_delta":
		// Thinking-block signatures only matter when replaying blocks to
		// the API, which is outside this pipeline.
		return nil

	case "input_json_delta":
		identity, ok := c.toolByIndex[index]
		if !ok {
			return []llmstream.StreamEvent{llmstream.ErrorEvent(c.Provider(), "", &llmstream.ProtocolViolationError{
				Reason: "input_json_delta for a block index with no tool_use content_block_start",
			})}
		}
		args := e.Delta.PartialJSON
		if args == "" {
			return nil
		}
		return []llmstream.StreamEvent{{ToolCall: &llmstream.ToolCallDelta{
			ID:        identity.id,
			ArgsDelta: &args,
			Index:     &index,
		}}}

	default:
		return nil
	}
}

func (c *Converter) convertMessageDelta(e anthropic.MessageDeltaEvent) []llmstream.StreamEvent {
	if e.Delta.StopReason != "" {
		// Held until message_stop emits StreamEnd.
		c.finish = llmstream.MapFinishReason(stopReasons, string(e.Delta.StopReason))
	}

	if e.Usage.OutputTokens == 0 && e.Usage.InputTokens == 0 {
		return nil
	}

	usage := &llmstream.Usage{}
	if e.Usage.OutputTokens > 0 {
		v := int(e.Usage.OutputTokens)
		usage.Completion = &v
	}
	if e.Usage.InputTokens > 0 {
		v := int(e.Usage.InputTokens)
		usage.Prompt = &v
	}
	return []llmstream.StreamEvent{{Usage: usage}}
}

func (c *Converter) errorEvent(data string) llmstream.StreamEvent {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	// Best effort: an unparseable error payload still terminates the
	// stream, just with less detail.
	_ = json.Unmarshal([]byte(data), &payload)

	return llmstream.ErrorEvent(c.Provider(), data, &llmstream.UpstreamError{
		Provider: c.Provider(),
		Code:     payload.Error.Type,
		Message:  payload.Error.Message,
	})
}

func (c *Converter) finishOrStop() llmstream.FinishReason {
	if c.finish != "" {
		return c.finish
	}
	return llmstream.FinishStop
}

func (c *Converter) modelOrDefault() string {
	if c.model != "" {
		return c.model
	}
	return c.opts.DefaultModel
}
