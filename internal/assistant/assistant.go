// Package assistant turns a student message into a reply by consulting the
// custom knowledge base, the intent classifier and the static table, and
// logs questions it could not answer with confidence.
package assistant

import (
	"context"
	"time"

	"mauassist/internal/intent"
	"mauassist/internal/knowledge"
	"mauassist/internal/logging"
)

const (
	IntentCustomKnowledge = "custom_knowledge"
	IntentGeneralHelp     = "general_help"

	CustomConfidence   = 0.95
	FallbackConfidence = 0.8

	DefaultLowConfidenceThreshold = 0.8
)

// Source names the tier that produced a reply
type Source string

const (
	SourceCustom   Source = "custom"
	SourceEntry    Source = "entry"
	SourceTopic    Source = "topic"
	SourceFallback Source = "fallback"
)

// Reply is the assistant's answer to one message
type Reply struct {
	Text       string              `json:"content"`
	Intent     string              `json:"intent"`
	Confidence float64             `json:"confidence"`
	Entities   map[string][]string `json:"entities,omitempty"`
	Source     Source              `json:"source"`
}

// Caller identifies the student asking. It is recorded, never validated.
type Caller struct {
	StudentID   string
	DisplayName string
	Faculty     string
	Level       string
}

// CustomKnowledge answers from admin-authored entries
type CustomKnowledge interface {
	Search(ctx context.Context, query string) (string, bool)
}

// Recorder logs questions that need admin attention
type Recorder interface {
	Record(ctx context.Context, question, studentID, studentName, category string)
}

// Options tunes an Assistant
type Options struct {
	ThinkingDelay          time.Duration
	LowConfidenceThreshold float64
}

// Assistant is the response orchestrator
type Assistant struct {
	static   *knowledge.Base
	custom   CustomKnowledge
	recorder Recorder
	opts     Options
	logger   *logging.Logger
}

// New creates an assistant. custom and recorder may be nil.
func New(static *knowledge.Base, custom CustomKnowledge, recorder Recorder, opts Options, logger *logging.Logger) *Assistant {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.LowConfidenceThreshold <= 0 {
		opts.LowConfidenceThreshold = DefaultLowConfidenceThreshold
	}
	return &Assistant{
		static:   static,
		custom:   custom,
		recorder: recorder,
		opts:     opts,
		logger:   logger,
	}
}

// Respond answers message. It always returns a reply; when ctx is cancelled
// during the thinking delay the reply is produced without waiting further.
func (a *Assistant) Respond(ctx context.Context, message string, caller Caller) Reply {
	a.think(ctx)

	entities := intent.ExtractEntities(message)

	if a.custom != nil {
		if answer, ok := a.custom.Search(ctx, message); ok {
			a.logger.Debug("custom knowledge hit for %q", message)
			return Reply{
				Text:       answer,
				Intent:     IntentCustomKnowledge,
				Confidence: CustomConfidence,
				Entities:   entities,
				Source:     SourceCustom,
			}
		}
	}

	class := intent.Classify(message)
	result := a.static.Lookup(message)

	if result.Source == knowledge.SourceFallback {
		a.logger.Info("no answer for %q from %s", message, caller.StudentID)
		a.record(ctx, message, caller, IntentGeneralHelp)
		return Reply{
			Text:       result.Answer,
			Intent:     IntentGeneralHelp,
			Confidence: FallbackConfidence,
			Entities:   entities,
			Source:     SourceFallback,
		}
	}

	reply := Reply{
		Text:       result.Answer,
		Intent:     class.Intent,
		Confidence: class.Confidence,
		Entities:   entities,
		Source:     SourceEntry,
	}
	if result.Source == knowledge.SourceTopic {
		reply.Source = SourceTopic
	}

	if class.Confidence < a.opts.LowConfidenceThreshold {
		a.logger.Debug("low confidence %.2f for %q, recording", class.Confidence, message)
		a.record(ctx, message, caller, class.Intent)
	}

	return reply
}

func (a *Assistant) record(ctx context.Context, message string, caller Caller, category string) {
	if a.recorder == nil {
		return
	}
	a.recorder.Record(context.WithoutCancel(ctx), message, caller.StudentID, caller.DisplayName, category)
}

func (a *Assistant) think(ctx context.Context) {
	if a.opts.ThinkingDelay <= 0 {
		return
	}
	timer := time.NewTimer(a.opts.ThinkingDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// QuickInfo returns the static quick-reply categories
func (a *Assistant) QuickInfo() []knowledge.QuickInfoCategory {
	return a.static.QuickInfo()
}
