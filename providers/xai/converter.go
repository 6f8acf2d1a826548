// Package xai converts the xAI (Grok) streaming wire format into
// canonical stream events. The wire shape is OpenAI-compatible SSE with
// two reasoning extensions: a reasoning_content delta field on
// reasoning models, and inline <think> tags on models without one.
package xai

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	llmstream "github.com/haowjy/meridian-stream-go"
)

// doneSentinel is the literal payload marking stream end.
const doneSentinel = "[DONE]"

// finishReasons maps Grok finish_reason values to the canonical
// vocabulary.
var finishReasons = map[string]llmstream.FinishReason{
	"stop":           llmstream.FinishStop,
	"length":         llmstream.FinishLength,
	"tool_calls":     llmstream.FinishToolCalls,
	"function_call":  llmstream.FinishToolCalls,
	"content_filter": llmstream.FinishContentFilter,
}

// Converter translates Grok chunk frames into canonical events. Create
// one per stream with NewConverter.
type Converter struct {
	opts llmstream.Options

	started bool
	done    bool
	model   string
	finish  llmstream.FinishReason

	toolIDByIndex map[int]string

	// Models without a reasoning_content channel inline <think> tags in
	// the content stream; the filter separates them out and holds
	// partial markers across frame boundaries.
	thinkFilter *llmstream.ThinkTagFilter
}

// NewConverter creates a Grok converter using the registered provider
// options.
func NewConverter() *Converter {
	return NewConverterWithOptions(llmstream.OptionsFor(llmstream.ProviderXAI))
}

// NewConverterWithOptions creates a converter with explicit options.
func NewConverterWithOptions(opts llmstream.Options) *Converter {
	c := &Converter{
		opts:          opts,
		toolIDByIndex: make(map[int]string),
	}
	if opts.StripThinkTags {
		c.thinkFilter = llmstream.NewThinkTagFilter()
	}
	return c
}

// Provider returns the provider identifier.
func (c *Converter) Provider() llmstream.ProviderID {
	return llmstream.ProviderXAI
}

// UsagePolicy reports snapshot semantics: the final chunk carries one
// cumulative usage record.
func (c *Converter) UsagePolicy() llmstream.UsagePolicy {
	return llmstream.UsageReplace
}

// ConvertFrame turns one SSE block into canonical events.
func (c *Converter) ConvertFrame(frame llmstream.Frame) ([]llmstream.StreamEvent, error) {
	data := frame.Data

	if data == doneSentinel {
		c.done = true
		events := c.flushFilter()
		return append(events, llmstream.EndEvent(c.finishOrStop(), c.model)), nil
	}

	var chunk ChatCompletionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		if msg := gjson.Get(data, "error.message"); msg.Exists() {
			return []llmstream.StreamEvent{c.upstreamError(data, msg.String())}, nil
		}
		return nil, &llmstream.FrameParseError{
			Provider: c.Provider(),
			Frame:    data,
			Reason:   "not a chat.completion.chunk document",
			Err:      err,
		}
	}

	if msg := gjson.Get(data, "error.message"); msg.Exists() {
		return []llmstream.StreamEvent{c.upstreamError(data, msg.String())}, nil
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
// sentinel.
func (c *Converter) Finish() []llmstream.StreamEvent {
	if c.done {
		return nil
	}
	c.done = true

	events := c.flushFilter()
	return append(events, llmstream.EndEvent(c.finishOrStop(), c.model))
}

func (c *Converter) convertChoice(choice ChunkChoice) []llmstream.StreamEvent {
	var events []llmstream.StreamEvent
	index := choice.Index

	if choice.Delta.ReasoningContent != nil && *choice.Delta.ReasoningContent != "" {
		events = append(events, llmstream.ThinkingEvent(*choice.Delta.ReasoningContent))
	}

	if choice.Delta.Content != nil && *choice.Delta.Content != "" {
		events = append(events, c.convertContent(*choice.Delta.Content, index)...)
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

func (c *Converter) convertContent(text string, index int) []llmstream.StreamEvent {
	if c.thinkFilter == nil {
		return []llmstream.StreamEvent{llmstream.ContentEventAt(text, index)}
	}

	content, thinking := c.thinkFilter.Feed(text)

	var events []llmstream.StreamEvent
	if thinking != "" {
		events = append(events, llmstream.ThinkingEvent(thinking))
	}
	if content != "" {
		events = append(events, llmstream.ContentEventAt(content, index))
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

func (c *Converter) upstreamError(data, message string) llmstream.StreamEvent {
	return llmstream.ErrorEvent(c.Provider(), data, &llmstream.UpstreamError{
		Provider: c.Provider(),
		Code:     gjson.Get(data, "error.code").String(),
		Message:  message,
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

func convertUsage(u *ChunkUsage) *llmstream.Usage {
	usage := &llmstream.Usage{
		Prompt:     u.PromptTokens,
		Completion: u.CompletionTokens,
		Total:      u.TotalTokens,
	}
	if u.CompletionTokensDetails != nil {
		usage.Reasoning = u.CompletionTokensDetails.ReasoningTokens
	}
	return usage
}
