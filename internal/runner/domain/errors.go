package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownJob is returned when a job name is not registered with the runner
	ErrUnknownJob = errors.New("unknown job")

	// ErrTriggerQueueFull is returned when the manual trigger queue cannot accept another run
	ErrTriggerQueueFull = errors.New("trigger queue is full")
)

// ConnectionError is returned when a database for a role cannot be reached
type ConnectionError struct {
	Role Role
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s database: %v", e.Role, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TableNotFoundError is returned when introspection finds no columns for a table
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found", e.Table)
}

// SchemaError is returned when the database rejects a synthesized DDL statement
type SchemaError struct {
	Table     string
	Statement string
	Err       error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("create table %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NotificationError is returned when a mail cannot be delivered to the relay
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return "send notification: " + e.Err.Error()
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// JobFailure wraps any other error raised inside a job body
type JobFailure struct {
	Job string
	Err error
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.Job, e.Err)
}

func (e *JobFailure) Unwrap() error {
	return e.Err
}

// AsJobFailure wraps err in a JobFailure unless it already belongs to the
// taxonomy above
func AsJobFailure(job string, err error) error {
	if err == nil {
		return nil
	}

	var (
		connErr     *ConnectionError
		notFoundErr *TableNotFoundError
		schemaErr   *SchemaError
		notifyErr   *NotificationError
		failure     *JobFailure
	)
	switch {
	case errors.As(err, &connErr),
		errors.As(err, &notFoundErr),
		errors.As(err, &schemaErr),
		errors.As(err, &notifyErr),
		errors.As(err, &failure):
		return err
	}

	return &JobFailure{Job: job, Err: err}
}
