package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPollTimeout is returned when a check is still running after the
	// polling ceiling elapses.
	ErrPollTimeout = errors.New("polling ceiling reached before the check finished")
	// ErrCheckFailed is returned when the service marks the check as errored.
	ErrCheckFailed = errors.New("check finished with an error")
)

const (
	defaultPollInterval = 4 * time.Second
	defaultPollCeiling  = 10 * time.Minute
)

// PollOptions tune WaitForReport. Zero values fall back to the defaults:
// a 4 second interval and a 10 minute ceiling.
type PollOptions struct {
	Interval time.Duration
	Ceiling  time.Duration
}

// PollOptionsFromSeconds builds options from configured whole-second
// values; non-positive values keep the defaults.
func PollOptionsFromSeconds(interval, ceiling int) PollOptions {
	return PollOptions{
		Interval: time.Duration(interval) * time.Second,
		Ceiling:  time.Duration(ceiling) * time.Second,
	}
}

// WaitForReport polls the check status at a fixed interval until the check
// completes, then fetches and caches the report. The interval never speeds
// up or slows down with progress. Transient 503s are absorbed by the
// transport-level retry; once those attempts are spent the unavailability
// error is surfaced here.
func (c *Client) WaitForReport(ctx context.Context, token string, id uint, opts PollOptions) (*Report, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ceiling := opts.Ceiling
	if ceiling <= 0 {
		ceiling = defaultPollCeiling
	}

	deadline := time.Now().Add(ceiling)

	for {
		status, err := c.GetStatus(token, id)
		if err != nil {
			return nil, err
		}

		switch status.ProcessingStatus {
		case "completed":
			return c.GetReport(token, id)
		case "error":
			if status.ProcessingError != "" {
				return nil, fmt.Errorf("%w: %s", ErrCheckFailed, status.ProcessingError)
			}
			return nil, ErrCheckFailed
		}

		if time.Now().Add(interval).After(deadline) {
			return nil, ErrPollTimeout
		}
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
