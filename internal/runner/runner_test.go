package runner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/batch-sync/internal/config"
	"github.com/cuongbtq/batch-sync/internal/runner/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects start/end events across jobs
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeJob struct {
	name string
	rec  *recorder
	run  func(ctx context.Context) (int64, error)
}

func (j *fakeJob) Name() string { return j.name }
func (j *fakeJob) Kind() string { return domain.KindCopyTable }

func (j *fakeJob) Run(ctx context.Context) (int64, error) {
	if j.rec != nil {
		j.rec.add("start:" + j.name)
		defer j.rec.add("end:" + j.name)
	}
	if j.run != nil {
		return j.run(ctx)
	}
	return 1, nil
}

func at(t *testing.T, s string) Trigger {
	t.Helper()
	trigger, err := ParseTrigger(s)
	require.NoError(t, err)
	return trigger
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func day(hour, minute int) time.Time {
	return time.Date(2026, 10, 17, hour, minute, 0, 0, time.UTC)
}

func TestParseTrigger(t *testing.T) {
	trigger, err := ParseTrigger("15:58")
	require.NoError(t, err)
	assert.Equal(t, "15:58", trigger.String())

	for _, bad := range []string{"", "25:00", "3pm", "12:60", "* * *"} {
		_, err := ParseTrigger(bad)
		assert.Error(t, err, bad)
	}
}

func TestTrigger_Next(t *testing.T) {
	daily := at(t, "01:00")

	assert.Equal(t, day(1, 0), daily.Next(day(0, 59)))
	assert.Equal(t, day(1, 0).AddDate(0, 0, 1), daily.Next(day(1, 0)), "an occurrence equal to now is already past")
	assert.Equal(t, day(1, 0).AddDate(0, 0, 1), daily.Next(day(16, 32)))

	hourly := at(t, "0 * * * *")
	assert.Equal(t, day(17, 0), hourly.Next(day(16, 32)))

	// 2026-10-17 is a Saturday
	weekly := at(t, "30 2 * * 1")
	assert.Equal(t, time.Date(2026, 10, 19, 2, 30, 0, 0, time.UTC), weekly.Next(day(16, 32)))
}

func TestTrigger_NextKeepsLocation(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	now := time.Date(2026, 10, 17, 16, 0, 0, 0, loc)
	next := at(t, "15:58").Next(now)
	assert.Equal(t, loc, next.Location())
	assert.True(t, time.Date(2026, 10, 18, 15, 58, 0, 0, loc).Equal(next))
}

func TestParseSchedule(t *testing.T) {
	entries, err := ParseSchedule([]config.ScheduleEntry{
		{At: "01:00", Job: "copy"},
		{At: "@hourly", Job: "report"},
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "01:00", entries[0].At.String())
	assert.Equal(t, "copy", entries[0].Job)
	assert.Equal(t, "@hourly", entries[1].At.String())
	assert.Equal(t, "report", entries[1].Job)

	_, err = ParseSchedule([]config.ScheduleEntry{{At: "1am", Job: "copy"}})
	assert.Error(t, err)
}

func TestRunner_TickRunsDueJobsSequentially(t *testing.T) {
	rec := &recorder{}
	r, err := NewRunner(&Config{
		Logger: discardLogger(),
		Jobs: []Job{
			&fakeJob{name: "first", rec: rec},
			&fakeJob{name: "second", rec: rec},
		},
		Schedule: []Entry{
			{At: at(t, "01:00"), Job: "first"},
			{At: at(t, "01:30"), Job: "second"},
		},
		Location: time.UTC,
		Clock:    fixedClock(day(0, 0)),
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Zero(t, r.Tick(ctx, day(0, 30)))

	// a late tick finds both entries due; the earlier one completes first
	assert.Equal(t, 2, r.Tick(ctx, day(1, 45)))
	assert.Equal(t, []string{"start:first", "end:first", "start:second", "end:second"}, rec.snapshot())

	assert.Zero(t, r.Tick(ctx, day(1, 50)), "entries fire once per day")

	assert.Equal(t, 1, r.Tick(ctx, day(1, 0).AddDate(0, 0, 1)))
	assert.Len(t, rec.snapshot(), 6)
}

func TestRunner_PastEntryFirstDueTomorrow(t *testing.T) {
	r, err := NewRunner(&Config{
		Logger:   discardLogger(),
		Jobs:     []Job{&fakeJob{name: "upload"}},
		Schedule: []Entry{{At: at(t, "15:58"), Job: "upload"}},
		Location: time.UTC,
		Clock:    fixedClock(day(16, 0)),
	})
	require.NoError(t, err)

	assert.Zero(t, r.Tick(context.Background(), day(16, 1)))

	jobs := r.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"15:58"}, jobs[0].Schedule)
	require.NotNil(t, jobs[0].NextRun)
	assert.Equal(t, day(15, 58).AddDate(0, 0, 1), *jobs[0].NextRun)
	assert.Nil(t, jobs[0].LastRun)
}

func TestRunner_FailuresDoNotStopTheTick(t *testing.T) {
	var results []domain.RunResult
	observer := ObserverFunc(func(_ context.Context, result domain.RunResult) {
		results = append(results, result)
	})

	r, err := NewRunner(&Config{
		Logger: discardLogger(),
		Jobs: []Job{
			&fakeJob{name: "failing", run: func(context.Context) (int64, error) {
				return 0, errors.New("ORA-00942: table or view does not exist")
			}},
			&fakeJob{name: "panicking", run: func(context.Context) (int64, error) {
				panic("boom")
			}},
			&fakeJob{name: "healthy"},
		},
		Schedule: []Entry{
			{At: at(t, "01:00"), Job: "failing"},
			{At: at(t, "01:00"), Job: "panicking"},
			{At: at(t, "01:00"), Job: "healthy"},
		},
		Location:  time.UTC,
		Clock:     fixedClock(day(0, 0)),
		Observers: []Observer{observer},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, r.Tick(context.Background(), day(1, 0)))
	require.Len(t, results, 3)

	assert.Equal(t, domain.RunStatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "job failing failed")
	assert.Equal(t, domain.RunStatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "job panicked: boom")
	assert.Equal(t, domain.RunStatusSucceeded, results[2].Status)
	assert.Equal(t, int64(1), results[2].Rows)
	assert.Equal(t, domain.TriggerSchedule, results[2].Trigger)
	assert.NotEmpty(t, results[2].RunID)

	history := r.History()
	require.Len(t, history, 3)
	assert.Equal(t, "failing", history[0].Job)
}

func TestRunner_TaxonomyErrorsAreNotRewrapped(t *testing.T) {
	connErr := &domain.ConnectionError{Role: domain.RoleTarget, Err: errors.New("refused")}
	r, err := NewRunner(&Config{
		Logger: discardLogger(),
		Jobs: []Job{&fakeJob{name: "copy", run: func(context.Context) (int64, error) {
			return 0, connErr
		}}},
	})
	require.NoError(t, err)

	result, err := r.RunNow(context.Background(), "copy")
	require.NoError(t, err)
	assert.Equal(t, connErr.Error(), result.Error)
	assert.Equal(t, domain.TriggerManual, result.Trigger)
}

func TestRunner_JobTimeout(t *testing.T) {
	r, err := NewRunner(&Config{
		Logger: discardLogger(),
		Jobs: []Job{&fakeJob{name: "stuck", run: func(ctx context.Context) (int64, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}}},
		JobTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	result, err := r.RunNow(context.Background(), "stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.Contains(t, result.Error, context.DeadlineExceeded.Error())
}

func TestRunner_CanceledParentDoesNotAbortJob(t *testing.T) {
	r, err := NewRunner(&Config{
		Logger: discardLogger(),
		Jobs: []Job{&fakeJob{name: "copy", run: func(ctx context.Context) (int64, error) {
			return 5, ctx.Err()
		}}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.RunNow(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, result.Status)
}

func TestRunner_Trigger(t *testing.T) {
	r, err := NewRunner(&Config{
		Logger:    discardLogger(),
		Jobs:      []Job{&fakeJob{name: "copy"}},
		QueueSize: 1,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, r.Trigger("missing"), domain.ErrUnknownJob)
	require.NoError(t, r.Trigger("copy"))
	assert.ErrorIs(t, r.Trigger("copy"), domain.ErrTriggerQueueFull)

	_, err = r.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrUnknownJob)
}

func TestRunner_StartProcessesManualTriggers(t *testing.T) {
	rec := &recorder{}
	r, err := NewRunner(&Config{
		Logger:       discardLogger(),
		Jobs:         []Job{&fakeJob{name: "report", rec: rec}},
		PollInterval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Start(ctx)
	}()

	require.NoError(t, r.Trigger("report"))
	assert.Eventually(t, func() bool { return len(r.History()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}

	jobs := r.Jobs()
	require.NotNil(t, jobs[0].LastRun)
	assert.Equal(t, domain.TriggerManual, jobs[0].LastRun.Trigger)
	assert.Equal(t, []string{"start:report", "end:report"}, rec.snapshot())
}

func TestRunner_HistoryIsBounded(t *testing.T) {
	r, err := NewRunner(&Config{
		Logger:      discardLogger(),
		Jobs:        []Job{&fakeJob{name: "copy"}},
		HistorySize: 2,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := r.RunNow(context.Background(), "copy")
		require.NoError(t, err)
	}
	assert.Len(t, r.History(), 2)
}

func TestNewRunner_Errors(t *testing.T) {
	_, err := NewRunner(&Config{
		Logger: discardLogger(),
		Jobs:   []Job{&fakeJob{name: "copy"}, &fakeJob{name: "copy"}},
	})
	assert.ErrorContains(t, err, "duplicate job name")

	_, err = NewRunner(&Config{
		Logger:   discardLogger(),
		Jobs:     []Job{&fakeJob{name: "copy"}},
		Schedule: []Entry{{At: at(t, "01:00"), Job: "upload"}},
	})
	assert.ErrorContains(t, err, "unknown job")
}

type fakePublisher struct {
	body        []byte
	contentType string
	err         error
}

func (f *fakePublisher) Publish(_ context.Context, body []byte, contentType string) error {
	f.body = body
	f.contentType = contentType
	return f.err
}

func TestEventPublisher(t *testing.T) {
	pub := &fakePublisher{}
	observer := NewEventPublisher(pub, discardLogger())

	observer.Observe(context.Background(), domain.RunResult{
		RunID:  "run-1",
		Job:    "copy-customer",
		Kind:   domain.KindCopyTable,
		Rows:   40,
		Status: domain.RunStatusSucceeded,
	})

	assert.Equal(t, "application/json", pub.contentType)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.body, &decoded))
	assert.Equal(t, "copy-customer", decoded["job"])
	assert.Equal(t, float64(40), decoded["rows"])
	assert.NotContains(t, decoded, "error")
}

func TestEventPublisher_FailureIsLogged(t *testing.T) {
	logger, buf := bufferLogger()
	observer := NewEventPublisher(&fakePublisher{err: errors.New("channel closed")}, logger)

	observer.Observe(context.Background(), domain.RunResult{RunID: "run-1", Job: "copy"})
	assert.Contains(t, buf.String(), "Failed to publish run event")
}
