// Package round coordinates one round of a multi-model conversation: every
// selected model responds once to the shared history, in selection order,
// while lifecycle events stream to the client.
package round

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Hoarfrost42/Agent-Round/internal/provider"
	"github.com/Hoarfrost42/Agent-Round/internal/retry"
	"github.com/Hoarfrost42/Agent-Round/internal/store"
	"github.com/Hoarfrost42/Agent-Round/internal/thoughtfilter"
)

// Store is the slice of the session store the orchestrator mutates while a
// round runs. A store failure is infrastructural and aborts the round.
type Store interface {
	AddMessage(sessionID, role, content, modelID, status string, roundIndex int) (store.Message, error)
	GetSession(id string) (store.Session, error)
	UpdateTitle(id, title string) error
}

// ModelResolver maps a model id to its provider configuration and handle.
type ModelResolver interface {
	ResolveModel(modelID string) (provider.Config, provider.ModelConfig, provider.Provider, error)
}

// Options carries the per-process settings a round consumes.
type Options struct {
	Retry          retry.Config
	ChunkSize      int           // simulated-streaming chunk size, in runes
	TokenDelay     time.Duration // pause between simulated-streaming chunks
	ThoughtFilter  bool
	TitleMaxLength int
	ParallelCalls  bool
}

// Orchestrator executes rounds against a store and a model resolver.
type Orchestrator struct {
	store    Store
	resolver ModelResolver
	opts     Options
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(st Store, resolver ModelResolver, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 4
	}
	return &Orchestrator{
		store:    st,
		resolver: resolver,
		opts:     opts,
		logger:   logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// modelPlan is the resolved description of one model's turn this round. A
// set resolveErr means the plan never executes; it yields an error outcome
// immediately.
type modelPlan struct {
	modelID     string
	displayName string
	color       string
	providerID  string
	prompt      string
	position    int // 1-based speaking position
	provider    provider.Provider
	messages    []provider.Message // precomputed when parallel mode is on
	prefetch    chan prefetchResult
	resolveErr  error
}

type prefetchResult struct {
	text string
	err  error
}

// StreamRound executes one round for the session snapshot and returns the
// ordered event stream. Events for model i are fully emitted before any
// event for model i+1, regardless of background completion order. The
// channel closes when the round finishes or the context is cancelled.
func (o *Orchestrator) StreamRound(ctx context.Context, session store.Session) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		o.runRound(ctx, session, out)
	}()
	return out
}

func (o *Orchestrator) runRound(ctx context.Context, session store.Session, out chan<- Event) {
	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	roundIndex := session.CurrentRound
	sessionMessages := append([]store.Message(nil), session.Messages...)
	baseMessages := historyPayload(sessionMessages)
	sessionTitle := session.Title
	titleSent := false

	if !emit(roundStart(roundIndex)) {
		return
	}

	plans := o.buildPlans(ctx, session, baseMessages)

	appendMessage := func(role, content, modelID, status string) error {
		stored, err := o.store.AddMessage(session.ID, role, content, modelID, status, roundIndex)
		if err != nil {
			o.logger.Error("store append failed, aborting round",
				"session", session.ID, "round", roundIndex, "error", err)
			return err
		}
		sessionMessages = append(sessionMessages, stored)
		baseMessages = append(baseMessages, messagePayload(stored))
		return nil
	}

	for _, plan := range plans {
		if plan.resolveErr != nil {
			message := plan.resolveErr.Error()
			if !emit(modelError(plan.modelID, message)) {
				return
			}
			if !emit(modelEnd(plan.modelID, store.MessageError)) {
				return
			}
			if appendMessage(store.RoleAssistant, message, plan.modelID, store.MessageError) != nil {
				return
			}
			continue
		}

		if !emit(modelStart(plan.modelID, plan.displayName, plan.color)) {
			return
		}
		o.logger.Info("model request start",
			"model", plan.modelID,
			"provider", plan.providerID,
			"streaming", plan.provider.SupportsStreaming())
		start := time.Now()

		messages := plan.messages
		if messages == nil {
			messages = o.composeMessages(baseMessages, plan, len(plans))
		}

		var text string
		var err error
		if plan.provider.SupportsStreaming() {
			text, err = o.streamModel(ctx, plan, messages, emit)
		} else {
			text, err = o.completeModel(ctx, plan, messages, emit)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			o.logger.Warn("model request failed",
				"model", plan.modelID,
				"provider", plan.providerID,
				"duration", time.Since(start),
				"error", err)
			message := err.Error()
			if appendMessage(store.RoleAssistant, message, plan.modelID, store.MessageError) != nil {
				return
			}
			if !emit(modelError(plan.modelID, message)) {
				return
			}
			if !emit(modelEnd(plan.modelID, store.MessageError)) {
				return
			}
			continue
		}

		if appendMessage(store.RoleAssistant, text, plan.modelID, store.MessageSuccess) != nil {
			return
		}
		if !emit(modelEnd(plan.modelID, store.MessageSuccess)) {
			return
		}
		o.logger.Info("model request complete",
			"model", plan.modelID,
			"provider", plan.providerID,
			"status", "success",
			"duration", time.Since(start))

		if sessionTitle == store.DefaultTitle && !titleSent {
			generated := GenerateTitle(sessionMessages, o.opts.TitleMaxLength)
			if generated != "" && generated != sessionTitle {
				if err := o.store.UpdateTitle(session.ID, generated); err != nil {
					o.logger.Error("title update failed, aborting round",
						"session", session.ID, "error", err)
					return
				}
				sessionTitle = generated
				titleSent = true
				if !emit(titleGenerated(generated)) {
					return
				}
			}
		}
	}

	if !emit(roundEnd(roundIndex)) {
		return
	}
	final, err := o.store.GetSession(session.ID)
	if err != nil {
		o.logger.Error("session re-read failed after round",
			"session", session.ID, "error", err)
		return
	}
	if final.Status == store.StatusEnded {
		emit(sessionEnd())
	}
}

// buildPlans resolves every selected model in order. In parallel mode,
// non-streaming providers start generating against the pre-round snapshot
// immediately; streaming providers are never prefetched because token order
// must reflect real-time production.
func (o *Orchestrator) buildPlans(ctx context.Context, session store.Session, baseMessages []provider.Message) []*modelPlan {
	snapshot := append([]provider.Message(nil), baseMessages...)
	total := len(session.SelectedModels)

	plans := make([]*modelPlan, 0, total)
	for i, modelID := range session.SelectedModels {
		providerConfig, modelConfig, handle, err := o.resolver.ResolveModel(modelID)
		if err != nil {
			plans = append(plans, &modelPlan{
				modelID:     modelID,
				displayName: modelID,
				color:       "gray",
				position:    i + 1,
				resolveErr:  err,
			})
			continue
		}
		plan := &modelPlan{
			modelID:     modelID,
			displayName: displayNameOr(modelConfig.DisplayName, modelID),
			color:       colorOr(modelConfig.Color),
			providerID:  providerConfig.ID,
			prompt:      modelConfig.Prompt,
			position:    i + 1,
			provider:    handle,
		}
		if o.opts.ParallelCalls {
			plan.messages = o.composeMessages(snapshot, plan, total)
			if !handle.SupportsStreaming() {
				plan.prefetch = make(chan prefetchResult, 1)
				go func(p *modelPlan) {
					text, err := o.generateWithRetry(ctx, p, p.messages)
					p.prefetch <- prefetchResult{text: text, err: err}
				}(plan)
			}
		}
		plans = append(plans, plan)
	}
	return plans
}

// composeMessages prepends the model's system message, carrying a positional
// hint so later speakers can respond to earlier ones.
func (o *Orchestrator) composeMessages(base []provider.Message, plan *modelPlan, total int) []provider.Message {
	system := composeSystemPrompt(plan.prompt, plan.position, total)
	messages := make([]provider.Message, 0, len(base)+1)
	messages = append(messages, provider.Message{Role: "system", Content: system})
	messages = append(messages, base...)
	return messages
}

func composeSystemPrompt(prompt string, position, total int) string {
	hint := fmt.Sprintf(
		"You are speaker %d of %d in this round of a multi-model roundtable. "+
			"Responses from models speaking before you appear in the conversation history, tagged with their model name.",
		position, total)
	if prompt == "" {
		return hint
	}
	return prompt + "\n\n" + hint
}

// streamModel runs one streaming turn. Retry is allowed only while zero
// chunks have been consumed for the current attempt: once any provider
// chunk arrives, re-starting would duplicate content already delivered, so
// a later failure aborts the model instead.
func (o *Orchestrator) streamModel(ctx context.Context, plan *modelPlan, messages []provider.Message, emit func(Event) bool) (string, error) {
	attempts := o.opts.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		var filter *thoughtfilter.Filter
		if o.opts.ThoughtFilter {
			filter = thoughtfilter.New()
		}
		var full strings.Builder
		firstContent := false
		received := false

		forward := func(raw string) error {
			text := raw
			if filter != nil {
				text = filter.Feed(raw)
			}
			if text == "" {
				return nil
			}
			if !firstContent {
				// Some vendors emit leading blank chunks; drop them.
				text = strings.TrimLeft(text, " \t\r\n")
				if text == "" {
					return nil
				}
				firstContent = true
			}
			if !emit(token(text)) {
				return ctx.Err()
			}
			full.WriteString(text)
			return nil
		}

		ch, err := plan.provider.GenerateStream(ctx, messages, plan.modelID)
		if err == nil {
			var streamErr error
			for chunk := range ch {
				if chunk.Err != nil {
					streamErr = chunk.Err
					break
				}
				received = true
				if ferr := forward(chunk.Text); ferr != nil {
					return "", ferr
				}
			}
			if streamErr == nil {
				if filter != nil {
					tail := filter.Flush()
					if tail != "" {
						if !firstContent {
							tail = strings.TrimLeft(tail, " \t\r\n")
						}
						if tail != "" {
							if !emit(token(tail)) {
								return "", ctx.Err()
							}
							full.WriteString(tail)
						}
					}
				}
				return full.String(), nil
			}
			err = streamErr
		}

		if received || attempt >= attempts || !retry.IsRetryable(err) {
			return "", err
		}
		delay := retry.BackoffDelay(o.opts.Retry, attempt)
		o.logger.Warn("streaming retry scheduled",
			"model", plan.modelID,
			"provider", plan.providerID,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)
		if serr := o.sleep(ctx, delay); serr != nil {
			return "", serr
		}
	}
}

// completeModel runs one non-streaming turn: await the prefetch when one
// was launched, otherwise call now; then filter the whole text and re-chunk
// it so the client still renders incrementally.
func (o *Orchestrator) completeModel(ctx context.Context, plan *modelPlan, messages []provider.Message, emit func(Event) bool) (string, error) {
	var text string
	var err error
	if plan.prefetch != nil {
		select {
		case result := <-plan.prefetch:
			text, err = result.text, result.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	} else {
		text, err = o.generateWithRetry(ctx, plan, messages)
	}
	if err != nil {
		return "", err
	}

	if o.opts.ThoughtFilter {
		text = thoughtfilter.FilterThoughts(text)
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i += o.opts.ChunkSize {
		end := i + o.opts.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if !emit(token(string(runes[i:end]))) {
			return "", ctx.Err()
		}
		if o.opts.TokenDelay > 0 && end < len(runes) {
			if serr := o.sleep(ctx, o.opts.TokenDelay); serr != nil {
				return "", serr
			}
		}
	}
	return text, nil
}

func (o *Orchestrator) generateWithRetry(ctx context.Context, plan *modelPlan, messages []provider.Message) (string, error) {
	name := plan.providerID + ":" + plan.modelID
	return retry.Do(ctx, o.opts.Retry, name, o.logger, func(ctx context.Context) (string, error) {
		return plan.provider.Generate(ctx, messages, plan.modelID)
	})
}

// historyPayload converts stored history to provider payloads, tagging
// assistant messages with their originating model so downstream models can
// distinguish speakers.
func historyPayload(messages []store.Message) []provider.Message {
	out := make([]provider.Message, 0, len(messages))
	for _, message := range messages {
		out = append(out, messagePayload(message))
	}
	return out
}

func messagePayload(message store.Message) provider.Message {
	content := message.Content
	if message.Role == store.RoleAssistant && message.ModelID != "" {
		content = "[" + message.ModelID + "]: " + content
	}
	return provider.Message{Role: message.Role, Content: content}
}

func displayNameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func colorOr(color string) string {
	if color == "" {
		return "gray"
	}
	return color
}
