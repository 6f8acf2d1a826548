// Package llmstream normalizes real-time token streams from multiple LLM
// services into one canonical event sequence. Raw response-body bytes flow
// through an incremental UTF-8 decoder, a protocol-aware frame splitter,
// and a per-provider event converter into canonical events, which an
// accumulator folds into incremental state and a frozen final summary.
//
// The central correctness property is chunk-size independence: identical
// input bytes decode into identical events regardless of how the
// transport fragmented them.
package llmstream

import (
	"context"
	"io"
)

// Stream binds a decoder, splitter, converter, and accumulator for one
// response body. Bytes are pushed in arrival order; canonical events come
// back in the same call, already folded into the accumulator.
//
// A Stream is single-producer single-consumer: it is confined to the
// goroutine driving one response body and must never be mutated
// concurrently. Each concurrent request owns its own Stream.
type Stream struct {
	decoder    *UTF8Decoder
	splitter   FrameSplitter
	converter  EventConverter
	acc        *Accumulator
	terminated bool
	closed     bool
}

// NewStream creates a pipeline for one response body. The splitter must
// match the converter's wire format (SSE block framing or line-JSON).
func NewStream(converter EventConverter, splitter FrameSplitter) *Stream {
	return &Stream{
		decoder:   NewUTF8Decoder(),
		splitter:  splitter,
		converter: converter,
		acc:       NewAccumulator(converter.UsagePolicy()),
	}
}

// Accumulator exposes the running state for incremental consumers.
func (s *Stream) Accumulator() *Accumulator {
	return s.acc
}

// Terminated reports whether the terminal event has been emitted.
func (s *Stream) Terminated() bool {
	return s.terminated
}

// Push feeds one transport chunk through the pipeline and returns the
// canonical events it completed, in order. Empty events (no-op frames)
// are filtered out. A frame error terminates the stream: the returned
// slice ends with the terminal Error event and the error is also
// returned. Pushing after termination fails with ErrStreamTerminated.
func (s *Stream) Push(chunk []byte) ([]StreamEvent, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.terminated {
		return nil, ErrStreamTerminated
	}

	text := s.decoder.Decode(chunk)
	if text == "" {
		return nil, nil
	}
	return s.processFrames(s.splitter.Split(text))
}

// Close signals end-of-stream: the decoder and splitter flush, the
// converter finishes, and any resulting events are returned. Buffered
// bytes that never completed a valid sequence are dropped, a property of
// a truncated transport rather than a logic bug. Close is idempotent
// until Final is called.
func (s *Stream) Close() ([]StreamEvent, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	s.closed = true

	var frames []Frame
	if text := s.decoder.Flush(); text != "" {
		frames = append(frames, s.splitter.Split(text)...)
	}
	frames = append(frames, s.splitter.Flush()...)

	events, err := s.processFrames(frames)
	if err != nil || s.terminated {
		return events, err
	}

	// Transport ended without an explicit terminal frame; let the
	// converter close out the stream.
	for _, ev := range s.converter.Finish() {
		if ev.IsEmpty() {
			continue
		}
		if applyErr := s.acc.Apply(ev); applyErr != nil {
			return events, applyErr
		}
		events = append(events, ev)
		if ev.IsTerminal() {
			s.terminated = true
			break
		}
	}
	return events, nil
}

// Final freezes and returns the final summary. Valid only after the
// terminal event; callers that cancel mid-stream simply discard the
// Stream instead.
func (s *Stream) Final() (*Response, error) {
	return s.acc.Final()
}

func (s *Stream) processFrames(frames []Frame) ([]StreamEvent, error) {
	var events []StreamEvent
	for _, frame := range frames {
		if s.terminated {
			// Frames after the terminal event are a protocol violation.
			return events, &ProtocolViolationError{
				Reason: "frame received after terminal event",
				Err:    ErrStreamTerminated,
			}
		}

		converted, err := s.converter.ConvertFrame(frame)
		if err != nil {
			// A frame error terminates only this stream; it surfaces as
			// the terminal item of the event sequence.
			errEvent := ErrorEvent(s.converter.Provider(), frame.Data, err)
			if applyErr := s.acc.Apply(errEvent); applyErr != nil {
				return events, applyErr
			}
			s.terminated = true
			return append(events, errEvent), err
		}

		for _, ev := range converted {
			if ev.IsEmpty() {
				continue
			}
			if applyErr := s.acc.Apply(ev); applyErr != nil {
				return events, applyErr
			}
			events = append(events, ev)
			if ev.IsTerminal() {
				s.terminated = true
				break
			}
		}
	}
	return events, nil
}

// Events drives the pipeline from r and emits canonical events on a
// channel, in the pull-based single-consumer contract: the reader is
// paced by the consumer draining the channel, and cancelling ctx simply
// stops further reads. The channel is closed after the terminal event.
//
// Usage:
//
//	for event := range stream.Events(ctx, resp.Body) {
//	    if event.Err != nil { handle error }
//	    if event.Content != nil { render delta }
//	}
func (s *Stream) Events(ctx context.Context, r io.Reader) <-chan StreamEvent {
	eventChan := make(chan StreamEvent, 10) // Buffered to prevent blocking

	go func() {
		defer close(eventChan)

		buf := make([]byte, 4096)
		for {
			n, readErr := r.Read(buf)
			if n > 0 {
				events, err := s.Push(buf[:n])
				if !emitAll(ctx, eventChan, events) {
					return
				}
				if err != nil || s.terminated {
					return
				}
			}
			if readErr == io.EOF {
				events, _ := s.Close()
				emitAll(ctx, eventChan, events)
				return
			}
			if readErr != nil {
				// A transport failure terminates the stream the same way a
				// frame error does: the accumulator records it so Final
				// surfaces the error, not ErrNotTerminated.
				errEvent := ErrorEvent(s.converter.Provider(), "", readErr)
				if applyErr := s.acc.Apply(errEvent); applyErr == nil {
					s.terminated = true
				}
				emitAll(ctx, eventChan, []StreamEvent{errEvent})
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()

	return eventChan
}

func emitAll(ctx context.Context, ch chan<- StreamEvent, events []StreamEvent) bool {
	for _, ev := range events {
		select {
		case <-ctx.Done():
			return false
		case ch <- ev:
		}
	}
	return true
}

// Collect consumes the entire stream from r and returns the frozen final
// summary, for callers that want the non-streaming shape.
func (s *Stream) Collect(ctx context.Context, r io.Reader) (*Response, error) {
	for range s.Events(ctx, r) {
		// Events fold into the accumulator as they are produced; the
		// channel only needs draining.
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return s.Final()
}
