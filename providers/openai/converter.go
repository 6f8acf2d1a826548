// Package openai converts the OpenAI-compatible streaming wire format
// (SSE blocks carrying chat.completion.chunk documents, terminated by a
// literal [DONE] sentinel) into canonical stream events. The same shape
// is served by OpenAI, OpenRouter, Groq, and most compatible gateways.
package openai

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	llmstream "github.com/haowjy/meridian-stream-go"
)

// doneSentinel is the literal payload marking stream end.
const doneSentinel = "[DONE]"

// finishReasons maps upstream finish_reason values to the canonical
// vocabulary. Immutable per-converter data; unknown values map to
// FinishOther and are never dropped.
var finishReasons = map[string]llmstream.FinishReason{
	"stop":           llmstream.FinishStop,
	"length":         llmstream.FinishLength,
	"tool_calls":     llmstream.FinishToolCalls,
	"function_call":  llmstream.FinishToolCalls, // Legacy support
	"content_filter": llmstream.FinishContentFilter,
}

// Converter translates chat.completion.chunk frames into canonical events.
// Create one per stream with NewConverter.
type Converter struct {
	opts llmstream.Options

	started bool
	done    bool
	model   string
	finish  llmstream.FinishReason

	// The call id and function name arrive on a tool call's first
	// fragment only; later fragments identify the call by index.
	toolIDByIndex map[int]string
}

// NewConverter creates an OpenAI-compatible converter using the
// registered provider options.
func NewConverter() *Converter {
	return NewConverterWithOptions(llmstream.OptionsFor(llmstream.ProviderOpenAI))
}

// NewConverterWithOptions creates a converter with explicit options.
func NewConverterWithOptions(opts llmstream.Options) *Converter {
	return &Converter{
		opts:          opts,
		toolIDByIndex: make(map[int]string),
	}
}

// Provider returns the provider identifier.
func (c *Converter) Provider() llmstream.ProviderID {
	return llmstream.ProviderOpenAI
}

// UsagePolicy reports snapshot semantics: with stream_options
// include_usage the endpoint sends one final cumulative usage record,
// so later snapshots replace earlier ones field-wise.
func (c *Converter) UsagePolicy() llmstream.UsagePolicy {
	return llmstream.UsageReplace
}

// ConvertFrame turns one SSE block into canonical events.
func (c *Converter) ConvertFrame(frame llmstream.Frame) ([]llmstream.StreamEvent, error) {
	data := frame.Data

	if data == doneSentinel {
		c.done = true
		return []llmstream.StreamEvent{llmstream.EndEvent(c.finishOrStop(), c.model)}, nil
	}

	var chunk ChatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		// An error document shares the stream with chunks; surface it as
		// an upstream error rather than a parse failure.
		if msg := gjson.Get(data, "error.message"); msg.Exists() {
			return []llmstream.StreamEvent{llmstream.ErrorEvent(c.Provider(), data, &llmstream.UpstreamError{
				Provider: c.Provider(),
				Code:     gjson.Get(data, "error.code").String(),
				Message:  msg.String(),
			})}, nil
		}
		return nil, &llmstream.FrameParseError{
			Provider: c.Provider(),
			Frame:    data,
			Reason:   "not a chat.completion.chunk document",
			Err:      err,
		}
	}

	// Error documents can also be valid JSON that simply isn't a chunk.
	if msg := gjson.Get(data, "error.message"); msg.Exists() {
		return []llmstream.StreamEvent{llmstream.ErrorEvent(c.Provider(), data, &llmstream.UpstreamError{
			Provider: c.Provider(),
			Code:     gjson.Get(data, "error.code").String(),
			Message:  msg.String(),
		})}, nil
	}

	var events []llmstream.StreamEvent

	if chunk.Model != "" {
		c.model = chunk.Model
	}
	if !c.started {
		c.started = true
		events = append(events, llmstream.StreamEvent{Start: &llmstream.StreamStart{
			ID:       chunk.ID,
			Model:    c.modelOrDefault(),
			Provider: c.Provider(),
		}})
	}

	if chunk.Usage != nil {
		events = append(events, llmstream.StreamEvent{Usage: convertUsage(chunk.Usage)})
	}

	for _, choice := range chunk.Choices {
		events = append(events, c.convertChoice(choice)...)
	}

	return events, nil
}

// Finish closes out a stream whose transport ended without the [DONE]
// sentinel, which truncated proxies routinely do.
func (c *Converter) Finish() []llmstream.StreamEvent {
	if c.done {
		return nil
	}
	c.done = true
	return []llmstream.StreamEvent{llmstream.EndEvent(c.finishOrStop(), c.model)}
}

func (c *Converter) convertChoice(choice ChunkChoice) []llmstream.StreamEvent {
	var events []llmstream.StreamEvent
	index := choice.Index

	if choice.Delta.Content != nil && *choice.Delta.Content != "" {
		events = append(events, llmstream.ContentEventAt(*choice.Delta.Content, index))
	}

	for _, tc := range choice.Delta.ToolCalls {
		if ev, err := c.convertToolCall(tc); err == nil {
			events = append(events, ev)
		} else {
			events = append(events, llmstream.ErrorEvent(c.Provider(), "", err))
		}
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		// Held until the [DONE] sentinel (or Finish) emits StreamEnd.
		c.finish = llmstream.MapFinishReason(finishReasons, *choice.FinishReason)
	}

	return events
}

func (c *Converter) convertToolCall(tc ToolCallDelta) (llmstream.StreamEvent, error) {
	id := tc.ID
	if id != "" {
		c.toolIDByIndex[tc.Index] = id
	} else {
		id = c.toolIDByIndex[tc.Index]
	}
	if id == "" {
		return llmstream.StreamEvent{}, &llmstream.ProtocolViolationError{
			Reason: fmt.Sprintf("tool-call fragment at index %d arrived before any fragment carrying its id", tc.Index),
		}
	}

	delta := &llmstream.ToolCallDelta{ID: id}
	idx := tc.Index
	delta.Index = &idx
	if tc.Function.Name != "" {
		name := tc.Function.Name
		delta.Name = &name
	}
	if tc.Function.Arguments != "" {
		args := tc.Function.Arguments
		delta.ArgsDelta = &args
	}
	return llmstream.StreamEvent{ToolCall: delta}, nil
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

func convertUsage(u *ChunkUsage) *llmstream.Usage {
	usage := &llmstream.Usage{
		Prompt:     u.PromptTokens,
		Completion: u.CompletionTokens,
		Total:      u.TotalTokens,
	}
	if u.CompletionTokensDetails != nil {
		usage.Reasoning = u.CompletionTokensDetails.ReasoningTokens
	}
	if u.PromptTokensDetails != nil {
		usage.CacheRead = u.PromptTokensDetails.CachedTokens
	}
	return usage
}
