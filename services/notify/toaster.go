package notify

import (
	"io"
	"sync"
	"time"

	"github.com/labstack/gommon/color"

	"github.com/trezcool/masomo-portal/core/resource"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Toast struct {
	Level   Level
	Message string
	At      time.Time
}

// Toaster prints notifications to the terminal and keeps them in memory.
type Toaster struct {
	color *color.Color
	quiet bool

	mu      sync.Mutex
	history []Toast
}

var _ resource.Notifier = (*Toaster)(nil)

// NewToaster prints to `w`; colors are enabled only when `w` is a terminal.
func NewToaster(w io.Writer) *Toaster {
	c := color.New()
	c.SetOutput(w)
	return &Toaster{color: c}
}

// NewRecorder keeps the notifications without printing them.
func NewRecorder() *Toaster {
	return &Toaster{color: color.New(), quiet: true}
}

func (t *Toaster) Success(msg string) { t.push(LevelSuccess, msg) }
func (t *Toaster) Error(msg string)   { t.push(LevelError, msg) }
func (t *Toaster) Info(msg string)    { t.push(LevelInfo, msg) }

func (t *Toaster) push(level Level, msg string) {
	t.mu.Lock()
	t.history = append(t.history, Toast{Level: level, Message: msg, At: time.Now()})
	t.mu.Unlock()

	if t.quiet {
		return
	}
	switch level {
	case LevelSuccess:
		t.color.Println(t.color.Green("✔ " + msg))
	case LevelError:
		t.color.Println(t.color.Red("✘ "+msg, color.B))
	default:
		t.color.Println(t.color.Yellow("ℹ " + msg))
	}
}

func (t *Toaster) History() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Toast, len(t.history))
	copy(out, t.history)
	return out
}

// Last returns the last notification of `level`.
func (t *Toaster) Last(level Level) (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.history) - 1; i >= 0; i-- {
		if t.history[i].Level == level {
			return t.history[i], true
		}
	}
	return Toast{}, false
}

func (t *Toaster) Reset() {
	t.mu.Lock()
	t.history = nil
	t.mu.Unlock()
}
