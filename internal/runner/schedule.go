package runner

import (
	"fmt"
	"time"

	"github.com/cuongbtq/batch-sync/internal/config"
	"github.com/robfig/cron/v3"
)

// Trigger is a parsed schedule time. It accepts "HH:MM" for a daily run
// or a standard five-field cron expression such as "0 * * * *".
type Trigger struct {
	text     string
	schedule cron.Schedule
}

// ParseTrigger parses a configured schedule time
func ParseTrigger(s string) (Trigger, error) {
	sched, err := cron.ParseStandard(config.ScheduleEntry{At: s}.CronExpr())
	if err != nil {
		return Trigger{}, fmt.Errorf("invalid schedule time %q (want HH:MM or a cron expression): %w", s, err)
	}
	return Trigger{text: s, schedule: sched}, nil
}

func (t Trigger) String() string {
	return t.text
}

// Next returns the first occurrence strictly after now, in now's location
func (t Trigger) Next(now time.Time) time.Time {
	return t.schedule.Next(now)
}

// Entry binds a trigger to a job name
type Entry struct {
	At  Trigger
	Job string
}

// ParseSchedule converts configured schedule entries, keeping their order
func ParseSchedule(entries []config.ScheduleEntry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		at, err := ParseTrigger(e.At)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{At: at, Job: e.Job})
	}
	return out, nil
}
