// Package tools holds the built-in coaching tools exposed to the model.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stridefit-ai/coaching-engine/internal/tool"
)

// SetEntry records one completed set of an exercise.
type SetEntry struct {
	Exercise string    `json:"exercise"`
	Reps     int       `json:"reps"`
	Weight   float64   `json:"weight,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

// WorkoutLog is an in-memory training log, keyed by conversation or
// user once a real backing store exists. It backs the log_set and
// get_recent_workouts tools.
type WorkoutLog struct {
	mu      sync.Mutex
	entries []SetEntry
	now     func() time.Time
}

// NewWorkoutLog creates an empty log.
func NewWorkoutLog() *WorkoutLog {
	return &WorkoutLog{now: time.Now}
}

// Log appends a completed set.
func (w *WorkoutLog) Log(entry SetEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry.LoggedAt = w.now()
	w.entries = append(w.entries, entry)
}

// Recent returns the most recent entries, newest first.
func (w *WorkoutLog) Recent(limit int) []SetEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]SetEntry, len(w.entries))
	copy(out, w.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LoggedAt.After(out[j].LoggedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Register adds the workout tools to the registry.
func Register(reg *tool.Registry, log *WorkoutLog) error {
	defs := []tool.Definition{
		{
			Name:        "log_set",
			Description: "Record one completed set of an exercise",
			Required:    []string{"exercise", "reps"},
			Handler:     logSetHandler(log),
		},
		{
			Name:        "get_recent_workouts",
			Description: "List recently logged sets, newest first",
			Handler:     recentWorkoutsHandler(log),
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func logSetHandler(log *WorkoutLog) tool.HandlerFunc {
	return func(ctx context.Context, params map[string]string) (string, error) {
		reps, err := strconv.Atoi(strings.TrimSpace(params["reps"]))
		if err != nil || reps <= 0 {
			return "", fmt.Errorf("reps must be a positive integer, got %q", params["reps"])
		}

		entry := SetEntry{
			Exercise: strings.TrimSpace(params["exercise"]),
			Reps:     reps,
		}
		if entry.Exercise == "" {
			return "", fmt.Errorf("exercise must not be empty")
		}

		if raw, ok := params["weight"]; ok {
			weight, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || weight < 0 {
				return "", fmt.Errorf("weight must be a non-negative number, got %q", raw)
			}
			entry.Weight = weight
		}

		log.Log(entry)

		if entry.Weight > 0 {
			return fmt.Sprintf("Logged %d reps of %s at %g", entry.Reps, entry.Exercise, entry.Weight), nil
		}
		return fmt.Sprintf("Logged %d reps of %s", entry.Reps, entry.Exercise), nil
	}
}

func recentWorkoutsHandler(log *WorkoutLog) tool.HandlerFunc {
	return func(ctx context.Context, params map[string]string) (string, error) {
		limit := 10
		if raw, ok := params["limit"]; ok {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || n <= 0 {
				return "", fmt.Errorf("limit must be a positive integer, got %q", raw)
			}
			limit = n
		}

		entries := log.Recent(limit)
		if len(entries) == 0 {
			return "No workouts logged yet", nil
		}

		var b strings.Builder
		for i, e := range entries {
			if i > 0 {
				b.WriteString("\n")
			}
			if e.Weight > 0 {
				fmt.Fprintf(&b, "%s: %d reps at %g (%s)", e.Exercise, e.Reps, e.Weight, e.LoggedAt.Format("2006-01-02 15:04"))
			} else {
				fmt.Fprintf(&b, "%s: %d reps (%s)", e.Exercise, e.Reps, e.LoggedAt.Format("2006-01-02 15:04"))
			}
		}
		return b.String(), nil
	}
}
