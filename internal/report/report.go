// Package report decouples progress and diagnostic output from the code that
// produces it. Core packages emit Events; the CLI decides where they go.
package report

import (
	"sync"

	"github.com/rs/zerolog"
)

// Level is the severity of an Event.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Event is a single progress, warning or error notification.
type Event struct {
	Level  Level
	Msg    string
	Err    error
	Fields map[string]any
}

// Reporter receives events.
type Reporter interface {
	Report(ev Event)
}

// Debug, Info, Warn and Error build events with alternating key/value pairs,
// in the style of slog: Info("Found files", "count", 3).
func Debug(r Reporter, msg string, kv ...any) {
	r.Report(newEvent(LevelDebug, msg, nil, kv))
}

func Info(r Reporter, msg string, kv ...any) {
	r.Report(newEvent(LevelInfo, msg, nil, kv))
}

func Warn(r Reporter, err error, msg string, kv ...any) {
	r.Report(newEvent(LevelWarn, msg, err, kv))
}

func Error(r Reporter, err error, msg string, kv ...any) {
	r.Report(newEvent(LevelError, msg, err, kv))
}

func newEvent(level Level, msg string, err error, kv []any) Event {
	ev := Event{Level: level, Msg: msg, Err: err}
	if len(kv) > 0 {
		ev.Fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			ev.Fields[key] = kv[i+1]
		}
	}
	return ev
}

// Nop discards every event.
type Nop struct{}

func (Nop) Report(Event) {}

// Zerolog forwards events to a zerolog.Logger.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog creates a Reporter backed by logger.
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

func (z *Zerolog) Report(ev Event) {
	var e *zerolog.Event
	switch ev.Level {
	case LevelDebug:
		e = z.logger.Debug()
	case LevelWarn:
		e = z.logger.Warn()
	case LevelError:
		e = z.logger.Error()
	default:
		e = z.logger.Info()
	}
	if ev.Err != nil {
		e = e.Err(ev.Err)
	}
	if len(ev.Fields) > 0 {
		e = e.Fields(ev.Fields)
	}
	e.Msg(ev.Msg)
}

// Recorder keeps every event in memory. Tests use it to assert on output
// without parsing log text.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// AtLevel returns the recorded events with the given level.
func (r *Recorder) AtLevel(level Level) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Level == level {
			out = append(out, ev)
		}
	}
	return out
}
