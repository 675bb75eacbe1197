package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskKind identifies what a scheduled task does when it fires.
type TaskKind string

// TaskFeed is currently the only task kind users can create.
const TaskFeed TaskKind = "feed"

// ScheduledTask is a recurring task targeting one pet.
type ScheduledTask struct {
	ID        int64     `json:"task_id"`
	PetID     int64     `json:"pet_id"`
	Kind      TaskKind  `json:"kind"`
	DueAt     time.Time `json:"due_at"` // UTC
	Weekdays  Weekdays  `json:"weekdays"`
	Completed bool      `json:"completed"`
}

// Due reports whether the task should fire at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	now = now.UTC()
	return !t.Completed && !now.Before(t.DueAt) && t.Weekdays.Has(now.Weekday())
}

// Weekdays is a set of days of the week.
type Weekdays uint8

// AllWeekdays contains every day.
const AllWeekdays Weekdays = 1<<7 - 1

// NewWeekdays builds a set from days.
func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w = w.With(d)
	}
	return w
}

// With returns the set plus d.
func (w Weekdays) With(d time.Weekday) Weekdays {
	if d < time.Sunday || d > time.Saturday {
		return w
	}
	return w | 1<<uint(d)
}

// Has reports whether d is in the set.
func (w Weekdays) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return w&(1<<uint(d)) != 0
}

// Empty reports whether the set has no days.
func (w Weekdays) Empty() bool {
	return w&AllWeekdays == 0
}

// Shift moves every day in the set by n days, wrapping around the week.
func (w Weekdays) Shift(n int) Weekdays {
	n = ((n % 7) + 7) % 7
	var out Weekdays
	for _, d := range w.Days() {
		out = out.With(time.Weekday((int(d) + n) % 7))
	}
	return out
}

// Days lists the days in the set, Sunday first.
func (w Weekdays) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// String renders the set as comma-separated English day names, the
// storage format.
func (w Weekdays) String() string {
	days := w.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ",")
}

// ParseWeekday parses a full English day name, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(name, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ParseWeekdays parses day names into a set.
func ParseWeekdays(names []string) (Weekdays, error) {
	var w Weekdays
	for _, n := range names {
		d, err := ParseWeekday(n)
		if err != nil {
			return 0, err
		}
		w = w.With(d)
	}
	return w, nil
}

// ParseWeekdayList parses the comma-separated storage format.
func ParseWeekdayList(s string) (Weekdays, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseWeekdays(strings.Split(s, ","))
}

// MarshalJSON encodes the set as a list of day names.
func (w Weekdays) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 7)
	for _, d := range w.Days() {
		names = append(names, d.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes a list of day names.
func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseWeekdays(names)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
