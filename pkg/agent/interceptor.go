package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prepzo/go-prepzo/pkg/convo"
	"github.com/prepzo/go-prepzo/pkg/inference"
)

// Speaker speaks text directly, bypassing model generation. The App
// satisfies this with synthesized audio published to the room.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// triggerSpec binds a sentinel phrase to the tool it fires and the
// confirmation utterance spoken in place of the suppressed turn.
type triggerSpec struct {
	phrase       string
	tool         string
	confirmation string
}

var triggerSpecs = []triggerSpec{
	{TriggerResumeRequest, "request_resume", ResumeUploadConfirmation},
	{TriggerEmailRequest, "request_email", EmailFormConfirmation},
}

// TurnResult is the outcome of one intercepted model turn.
type TurnResult struct {
	// Text is the full assistant text of a pass-through turn. Empty
	// when the turn was suppressed.
	Text string

	// Triggered reports whether a sentinel phrase fired. A triggered
	// turn forwards nothing downstream.
	Triggered bool

	// Trigger is the sentinel phrase that fired, if any.
	Trigger string

	// ToolCalls are structured calls the model requested. The session
	// loop invokes them and re-injects results before regenerating.
	ToolCalls []inference.ToolCall
}

// Interceptor mediates between raw model output and spoken output.
//
// Each turn runs a small state machine: while streaming, chunks are
// buffered and the accumulated text is scanned for sentinel phrases.
// A trigger-free turn forwards every chunk in order once the stream
// completes; a triggered turn forwards nothing, invokes the matching
// tool exactly once, and speaks a fixed confirmation instead.
// Forwarding is deferred until the turn completes so a sentinel
// arriving in a late chunk can never leak earlier text to the user.
type Interceptor struct {
	registry *Registry
	convo    *convo.Manager
	speaker  Speaker
	logger   *slog.Logger
}

// NewInterceptor creates a turn interceptor.
func NewInterceptor(registry *Registry, manager *convo.Manager, speaker Speaker, logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		registry: registry,
		convo:    manager,
		speaker:  speaker,
		logger:   logger.With("component", "agent.interceptor"),
	}
}

// Run consumes one model turn from stream. For pass-through turns,
// forward is called once per chunk in order; forward may be nil.
// Stream errors propagate to the caller so the session loop can
// terminate the process.
func (i *Interceptor) Run(ctx context.Context, stream inference.Stream, forward func(delta string) error) (*TurnResult, error) {
	var (
		buffer  strings.Builder
		deltas  []string
		calls   []inference.ToolCall
		matched *triggerSpec
	)

	for {
		chunk, err := stream.Recv()
		if err != nil {
			return nil, fmt.Errorf("model stream: %w", err)
		}

		if len(chunk.ToolCalls) > 0 {
			calls = mergeToolCalls(calls, chunk.ToolCalls)
		}

		if chunk.Delta != "" {
			buffer.WriteString(chunk.Delta)
			deltas = append(deltas, chunk.Delta)

			// First detection wins; once triggered every remaining
			// chunk is already suppressed, so scanning stops.
			if matched == nil {
				matched = detectTrigger(buffer.String())
				if matched != nil {
					i.logger.Info("trigger detected", "phrase", matched.phrase, "tool", matched.tool)
				}
			}
		}

		if chunk.Done {
			break
		}
	}

	if matched != nil {
		return i.fireTrigger(ctx, matched)
	}

	if forward != nil {
		for _, delta := range deltas {
			if err := forward(delta); err != nil {
				return nil, fmt.Errorf("forward chunk: %w", err)
			}
		}
	}

	if len(calls) > 0 {
		i.logger.Info("model requested tool calls", "count", len(calls))
	}

	return &TurnResult{Text: buffer.String(), ToolCalls: calls}, nil
}

// fireTrigger runs the suppressed-turn path: record the sentinel,
// invoke the tool once, speak the confirmation. A tool failure ends
// the turn silently; the user gets no utterance for that turn.
func (i *Interceptor) fireTrigger(ctx context.Context, spec *triggerSpec) (*TurnResult, error) {
	result := &TurnResult{Triggered: true, Trigger: spec.phrase}

	if i.convo != nil {
		i.convo.AddMessage(convo.TriggerMessage(spec.phrase))
	}

	if err := i.registry.Trigger(ctx, spec.tool); err != nil {
		i.logger.Error("trigger tool failed", "tool", spec.tool, "error", err)
		return result, nil
	}

	if i.speaker != nil {
		if err := i.speaker.Say(ctx, spec.confirmation); err != nil {
			i.logger.Error("confirmation speech failed", "error", err)
		}
	}

	return result, nil
}

// detectTrigger returns the sentinel that appears earliest in text.
func detectTrigger(text string) *triggerSpec {
	var (
		best    *triggerSpec
		bestIdx int
	)
	for idx := range triggerSpecs {
		spec := &triggerSpecs[idx]
		pos := strings.Index(text, spec.phrase)
		if pos < 0 {
			continue
		}
		if best == nil || pos < bestIdx {
			best = spec
			bestIdx = pos
		}
	}
	return best
}

// mergeToolCalls accumulates streamed tool call fragments. Fragments
// carrying an ID start or extend that call; ID-less fragments extend
// the most recent one.
func mergeToolCalls(into []inference.ToolCall, fragments []inference.ToolCall) []inference.ToolCall {
	for _, f := range fragments {
		if f.ID != "" {
			merged := false
			for idx := range into {
				if into[idx].ID == f.ID {
					into[idx].Arguments += f.Arguments
					if into[idx].Name == "" {
						into[idx].Name = f.Name
					}
					merged = true
					break
				}
			}
			if !merged {
				into = append(into, f)
			}
			continue
		}
		if len(into) == 0 {
			into = append(into, f)
			continue
		}
		last := &into[len(into)-1]
		last.Arguments += f.Arguments
		if last.Name == "" {
			last.Name = f.Name
		}
	}
	return into
}
