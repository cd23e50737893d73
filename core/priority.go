package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority ranks jobs queued on a Dispatcher. Higher values drain first.
type Priority int

const (
	// PriorityInvalid is never accepted by the dispatcher.
	PriorityInvalid Priority = -1

	// PrioritySystemIdle: Lowest priority, runs when nothing else is pending
	PrioritySystemIdle Priority = iota - 1
	PriorityApplicationIdle
	PriorityContextIdle
	PriorityBackground
	PriorityInput
	PriorityLoaded
	PriorityRender
	PriorityDataBind

	// PriorityNormal: Default priority for Post and InvokeAsync
	PriorityNormal

	// PrioritySend: Highest priority
	PrioritySend
)

const (
	// MinValue is the lowest valid priority.
	MinValue = PrioritySystemIdle
	// MaxValue is the highest valid priority.
	MaxValue = PrioritySend

	priorityLevels = int(MaxValue) + 1
)

var priorityNames = [priorityLevels]string{
	"system_idle",
	"application_idle",
	"context_idle",
	"background",
	"input",
	"loaded",
	"render",
	"data_bind",
	"normal",
	"send",
}

// Valid reports whether p lies within [MinValue, MaxValue].
func (p Priority) Valid() bool {
	return p >= MinValue && p <= MaxValue
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// Priorities returns every valid level from MinValue to MaxValue.
func Priorities() []Priority {
	out := make([]Priority, 0, priorityLevels)
	for p := MinValue; p <= MaxValue; p++ {
		out = append(out, p)
	}
	return out
}

// ParsePriority accepts a level name ("normal", "DataBind", "data-bind") or its number.
func ParsePriority(s string) (Priority, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	for i, name := range priorityNames {
		if norm == name || norm == strings.ReplaceAll(name, "_", "") {
			return Priority(i), nil
		}
	}

	if n, err := strconv.Atoi(norm); err == nil && Priority(n).Valid() {
		return Priority(n), nil
	}
	return PriorityInvalid, fmt.Errorf("unknown priority %q", s)
}
