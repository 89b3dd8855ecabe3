// Package agent drives a conversation turn: model calls, tool execution and the
// step events streamed to the client.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/bluservice/internal/concurrency"
	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/model"
	"github.com/harunnryd/bluservice/internal/model/contract"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/harunnryd/bluservice/internal/agent"

type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTool
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTool:
		return "executing_tool"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Turn outcomes reported to the TurnObserver.
const (
	OutcomeDone      = "done"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Tools is the part of the tool registry the loop needs.
type Tools interface {
	Has(name string) bool
	Definitions() []contract.ToolDef
	Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

type TurnObserver interface {
	ObserveTurn(outcome, category string, modelCalls int, duration time.Duration)
}

// Settings is the configuration snapshot a session runs its turns with.
type Settings struct {
	Model            string
	SystemPrompt     string
	MaxSteps         int
	PlanningInterval int
	TurnTimeout      time.Duration
}

// SettingsFromConfig builds Settings from the agent section and the default model id.
func SettingsFromConfig(cfg config.AgentConfig, modelID string) (Settings, error) {
	timeout, err := config.DurationOrDefault(cfg.TurnTimeout, config.DefaultAgentTurnTimeout)
	if err != nil {
		return Settings{}, bluErrors.InvalidInput(fmt.Sprintf("invalid agent.turn_timeout: %v", err))
	}
	s := Settings{
		Model:            modelID,
		SystemPrompt:     cfg.SystemPrompt,
		MaxSteps:         cfg.MaxSteps,
		PlanningInterval: cfg.PlanningInterval,
		TurnTimeout:      timeout,
	}
	if s.MaxSteps <= 0 {
		s.MaxSteps = config.DefaultAgentMaxSteps
	}
	if s.PlanningInterval < 0 {
		s.PlanningInterval = 0
	}
	return s, nil
}

// Loop is the step controller. It is stateless between turns and safe for concurrent use.
type Loop struct {
	client   model.Client
	tools    Tools
	settings Settings
	observer TurnObserver
	tracer   trace.Tracer
}

type LoopOption func(*Loop)

func WithTurnObserver(o TurnObserver) LoopOption {
	return func(l *Loop) { l.observer = o }
}

func NewLoop(client model.Client, tools Tools, settings Settings, opts ...LoopOption) *Loop {
	if settings.MaxSteps <= 0 {
		settings.MaxSteps = config.DefaultAgentMaxSteps
	}
	if settings.TurnTimeout <= 0 {
		settings.TurnTimeout, _ = config.DurationOrDefault("", config.DefaultAgentTurnTimeout)
	}
	l := &Loop{
		client:   client,
		tools:    tools,
		settings: settings,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Settings() Settings {
	return l.settings
}

// Run executes one turn over transcript and streams its events. The channel is
// unbuffered and closed after the terminal event.
//
// Cancelling ctx stops emission: the in-flight model or tool call still finishes
// under the turn timeout, its result is dropped and the channel closes without a
// terminal event.
func (l *Loop) Run(ctx context.Context, transcript []contract.Message) <-chan StepEvent {
	events := make(chan StepEvent)

	t := &turn{
		loop:     l,
		parent:   ctx,
		events:   events,
		messages: append([]contract.Message(nil), transcript...),
		state:    StateAwaitingModel,
	}

	concurrency.SafeGo(ctx, "agent.turn", func() {
		defer close(events)
		t.run()
	}, nil)

	return events
}

type turn struct {
	loop       *Loop
	parent     context.Context
	work       context.Context
	events     chan<- StepEvent
	messages   []contract.Message
	state      State
	step       int
	modelCalls int
}

func (t *turn) run() {
	l := t.loop
	start := time.Now()

	work, cancel := context.WithTimeout(context.WithoutCancel(t.parent), l.settings.TurnTimeout)
	defer cancel()
	work, span := l.tracer.Start(work, "agent.turn", trace.WithAttributes(
		attribute.String("llm.model", l.settings.Model),
		attribute.Int("agent.max_steps", l.settings.MaxSteps),
		attribute.Int("agent.transcript", len(t.messages)),
	))
	defer span.End()
	t.work = work

	attrs := append([]any{"max_steps", l.settings.MaxSteps}, logger.Attrs(t.parent)...)
	slog.Info("Turn started", attrs...)

	var failure error
	defer func() {
		if r := recover(); r != nil {
			failure = bluErrors.Internal(fmt.Sprintf("turn panicked: %v", r))
			t.fail(failure)
		}

		outcome := OutcomeDone
		switch {
		case t.state == StateFailed:
			outcome = OutcomeFailed
		case t.state != StateDone:
			outcome = OutcomeCancelled
		}
		category := bluErrors.Category(failure)
		if failure != nil {
			span.RecordError(failure)
			span.SetStatus(codes.Error, failure.Error())
		}
		span.SetAttributes(
			attribute.String("agent.outcome", outcome),
			attribute.Int("agent.model_calls", t.modelCalls),
		)
		if l.observer != nil {
			l.observer.ObserveTurn(outcome, category, t.modelCalls, time.Since(start))
		}
		slog.Info("Turn finished", append(attrs, "outcome", outcome, "category", category, "model_calls", t.modelCalls, "duration_ms", time.Since(start).Milliseconds())...)
	}()

	failure = t.loop.drive(t)
}

// drive runs the state machine. It returns the failure that ended the turn, if any.
func (l *Loop) drive(t *turn) error {
	for {
		if err := t.work.Err(); err != nil {
			return t.fail(timeoutError(err))
		}

		if !t.emit(StepEvent{Kind: KindStatus}) {
			return nil
		}

		t.modelCalls++
		resp, err := l.client.Complete(t.work, contract.CompletionRequest{
			Model:            l.settings.Model,
			System:           l.settings.SystemPrompt,
			Messages:         append([]contract.Message(nil), t.messages...),
			Tools:            l.tools.Definitions(),
			PlanningInterval: l.settings.PlanningInterval,
		})
		if t.parent.Err() != nil {
			return nil
		}
		if err != nil {
			if werr := t.work.Err(); werr != nil {
				return t.fail(timeoutError(werr))
			}
			if bluErrors.Category(err) == bluErrors.CategoryUnknown {
				err = bluErrors.Provider("model", err)
			}
			return t.fail(err)
		}

		if len(resp.ToolCalls) == 0 {
			t.state = StateDone
			t.emit(StepEvent{Kind: KindFinalAnswer, Content: formatAnswer(resp.Content)})
			return nil
		}

		if t.modelCalls >= l.settings.MaxSteps {
			return t.fail(bluErrors.StepBudgetExceeded(l.settings.MaxSteps))
		}

		// Single tool per step: only the first call is executed and recorded.
		call := resp.ToolCalls[0]
		if len(resp.ToolCalls) > 1 {
			slog.Debug("Ignoring extra tool calls", append([]any{"requested", len(resp.ToolCalls), "executed", call.Name}, logger.Attrs(t.parent)...)...)
		}
		if call.ID == "" {
			call.ID = "call_" + ulid.Make().String()
		}
		if !l.tools.Has(call.Name) {
			return t.fail(bluErrors.UnknownTool(call.Name))
		}

		t.messages = append(t.messages, contract.Message{
			Role:      contract.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: []contract.ToolCall{call},
		})
		t.state = StateExecutingTool
		if !t.emit(StepEvent{Kind: KindToolInvoked, Tool: call.Name, ToolCallID: call.ID, Arguments: call.Arguments}) {
			return nil
		}

		content, category, err := l.invoke(t, call)
		if t.parent.Err() != nil {
			return nil
		}
		if err != nil {
			return t.fail(err)
		}

		t.messages = append(t.messages, contract.Message{
			Role:       contract.RoleTool,
			ToolCallID: call.ID,
			Content:    content,
		})
		t.state = StateAwaitingModel
		if !t.emit(StepEvent{Kind: KindToolResult, Tool: call.Name, ToolCallID: call.ID, Content: content, Category: category}) {
			return nil
		}
	}
}

// invoke runs one tool call. Recoverable failures come back as an "Error: ..." result
// for the model; the returned error is only set when the turn must fail.
func (l *Loop) invoke(t *turn, call contract.ToolCall) (string, string, error) {
	var (
		out string
		err error
	)
	if call.Malformed() {
		err = bluErrors.InvalidArguments(call.Name, fmt.Errorf("arguments are not a JSON object: %s", call.Raw))
	} else {
		out, err = l.tools.Invoke(t.work, call.Name, call.Arguments)
	}
	if err == nil {
		return out, "", nil
	}

	if werr := t.work.Err(); werr != nil {
		return "", "", timeoutError(werr)
	}
	if errors.Is(err, bluErrors.ErrUnknownTool) {
		return "", "", err
	}
	category := bluErrors.Category(err)
	slog.Warn("Tool call failed, returning error to model", append([]any{"tool", call.Name, "category", category, "error", err}, logger.Attrs(t.parent)...)...)
	return "Error: " + err.Error(), category, nil
}

// emit numbers and delivers ev. It returns false once the caller has gone away.
func (t *turn) emit(ev StepEvent) bool {
	if t.parent.Err() != nil {
		return false
	}
	t.step++
	ev.Step = t.step
	ev.ModelCall = t.modelCalls
	ev.MaxSteps = t.loop.settings.MaxSteps

	select {
	case t.events <- ev:
		return true
	case <-t.parent.Done():
		return false
	}
}

func (t *turn) fail(err error) error {
	t.state = StateFailed
	slog.Error("Turn failed", append([]any{"category", bluErrors.Category(err), "error", err}, logger.Attrs(t.parent)...)...)
	t.emit(StepEvent{Kind: KindError, Content: err.Error(), Category: bluErrors.Category(err), Err: err})
	return err
}

func timeoutError(err error) error {
	return fmt.Errorf("turn timed out: %w: %w", bluErrors.ErrTurnTimeout, err)
}
