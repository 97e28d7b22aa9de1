// Package assistant consumes voice commands and turns the ones that read as
// schedules into calendar events, answering each with spoken feedback.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rbright/dpt/internal/calendar"
	"github.com/rbright/dpt/internal/dictionary"
	"github.com/rbright/dpt/internal/schedule"
)

const (
	// ReplyNotUnderstood is spoken when a command does not parse well enough.
	ReplyNotUnderstood = "죄송합니다. 날짜와 시간을 정확히 말씀해 주세요."
	// ReplySaveFailed is spoken when the calendar rejects an event.
	ReplySaveFailed = "일정을 저장하지 못했습니다."

	replyCreatedSuffix = " 일정을 등록했습니다."
)

// Parser extracts a schedule from command text.
type Parser interface {
	Parse(text string, reference time.Time) (schedule.Schedule, error)
}

// Sink stores calendar events.
type Sink interface {
	Add(ctx context.Context, event calendar.Event) (calendar.Event, error)
}

// Speaker voices a reply without blocking.
type Speaker interface {
	Speak(text string, onDone func())
}

// Commands hands out captured commands one at a time.
type Commands interface {
	WaitCommand(ctx context.Context) (string, error)
}

// UsageRecorder counts dictionary terms that helped a command parse.
type UsageRecorder interface {
	FindMatches(text string) []dictionary.Entry
	IncrementUsage(ctx context.Context, keyword string) error
}

// Outcome classifies a handled command.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeRejected   Outcome = "rejected"
	OutcomeSaveFailed Outcome = "save_failed"
)

// Result describes one handled command.
type Result struct {
	Command  string             `json:"command"`
	Outcome  Outcome            `json:"outcome"`
	Schedule *schedule.Schedule `json:"schedule,omitempty"`
	Event    *calendar.Event    `json:"event,omitempty"`
	// Confident marks results at or above the confirm threshold.
	Confident bool   `json:"confident"`
	Reply     string `json:"reply"`
}

// Options configures an Assistant.
type Options struct {
	Parser           Parser
	Sink             Sink
	Speaker          Speaker
	Usage            UsageRecorder
	Clock            clockwork.Clock
	Location         *time.Location
	AutoThreshold    float64
	ConfirmThreshold float64
	DefaultDuration  time.Duration
	Logger           *slog.Logger
	// OnResult observes every handled command.
	OnResult func(Result)
}

// Assistant turns commands into calendar events.
type Assistant struct {
	opts Options
}

// New fills option defaults. Parser and Sink are required.
func New(opts Options) (*Assistant, error) {
	if opts.Parser == nil {
		return nil, errors.New("assistant parser is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("assistant calendar sink is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Assistant{opts: opts}, nil
}

// Run handles commands until ctx ends. Handling errors are logged, not returned.
func (a *Assistant) Run(ctx context.Context, commands Commands) error {
	for {
		command, err := commands.WaitCommand(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for command: %w", err)
		}
		if _, err := a.Handle(ctx, command); err != nil {
			a.opts.Logger.Error("assistant command failed", "command", command, "error", err.Error())
		}
	}
}

// Handle parses one command and, when it is confident enough, stores the
// event. The reply is spoken in every case.
func (a *Assistant) Handle(ctx context.Context, command string) (Result, error) {
	command = strings.TrimSpace(command)
	now := a.opts.Clock.Now().In(a.opts.Location)
	result := Result{Command: command}

	parsed, err := a.opts.Parser.Parse(command, now)
	if err != nil && !schedule.IsNoParse(err) {
		return a.finish(result, OutcomeRejected, ReplyNotUnderstood), fmt.Errorf("parse command: %w", err)
	}
	if err != nil || parsed.Confidence <= a.opts.AutoThreshold {
		if err == nil {
			result.Schedule = &parsed
		}
		a.opts.Logger.Info("assistant command not understood", "command", command, "confidence", parsed.Confidence)
		return a.finish(result, OutcomeRejected, ReplyNotUnderstood), nil
	}

	result.Schedule = &parsed
	result.Confident = parsed.Confidence >= a.opts.ConfirmThreshold

	event, err := a.opts.Sink.Add(ctx, calendar.FromSchedule(parsed, a.opts.DefaultDuration))
	if err != nil {
		return a.finish(result, OutcomeSaveFailed, ReplySaveFailed), fmt.Errorf("save event: %w", err)
	}
	result.Event = &event

	a.recordUsage(ctx, command)
	a.opts.Logger.Info("assistant event created", "id", event.ID, "title", event.Title, "confidence", parsed.Confidence)
	return a.finish(result, OutcomeCreated, parsed.Describe(now)+replyCreatedSuffix), nil
}

func (a *Assistant) finish(result Result, outcome Outcome, reply string) Result {
	result.Outcome = outcome
	result.Reply = reply
	if a.opts.Speaker != nil {
		a.opts.Speaker.Speak(reply, nil)
	}
	if a.opts.OnResult != nil {
		a.opts.OnResult(result)
	}
	return result
}

func (a *Assistant) recordUsage(ctx context.Context, command string) {
	if a.opts.Usage == nil {
		return
	}
	for _, entry := range a.opts.Usage.FindMatches(command) {
		if err := a.opts.Usage.IncrementUsage(ctx, entry.Keyword); err != nil {
			a.opts.Logger.Debug("dictionary usage update failed", "keyword", entry.Keyword, "error", err.Error())
		}
	}
}
