package domain

import (
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds a timer description, in characters.
const MaxDescriptionLength = 255

// Timer tracks a single stretch of work for one user.
type Timer struct {
	ID          int64
	UserID      int64
	Description string
	Start       time.Time
	End         *time.Time
	Active      bool
	CreatedAt   time.Time
}

// Duration returns end-start for a stopped timer.
func (t Timer) Duration() (time.Duration, bool) {
	if t.Active || t.End == nil {
		return 0, false
	}
	return t.End.Sub(t.Start), true
}

// Progress returns the time elapsed since start for an active timer.
func (t Timer) Progress(now time.Time) (time.Duration, bool) {
	if !t.Active {
		return 0, false
	}
	d := now.Sub(t.Start)
	if d < 0 {
		d = 0
	}
	return d, true
}

// ValidateDescription checks an already trimmed description.
func ValidateDescription(description string) error {
	if description == "" {
		return NewValidationError("description_required", "Description is required")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return NewValidationError("description_too_long", "Description too long")
	}
	return nil
}

// TimerView is a timer annotated with values derived at read time.
type TimerView struct {
	Timer
	Progress *time.Duration
	Elapsed  *time.Duration
}

// Annotate derives progress (active) or elapsed duration (stopped) as of now.
func Annotate(t Timer, now time.Time) TimerView {
	view := TimerView{Timer: t}
	if d, ok := t.Duration(); ok {
		view.Elapsed = &d
	}
	if p, ok := t.Progress(now); ok {
		view.Progress = &p
	}
	return view
}

// AnnotateAll annotates every timer against the same instant.
func AnnotateAll(timers []Timer, now time.Time) []TimerView {
	views := make([]TimerView, len(timers))
	for i := range timers {
		views[i] = Annotate(timers[i], now)
	}
	return views
}
