// Package outcome describes the result of a best-effort external call.
//
// Article extraction and summarization never abort a digest run. Instead of
// swallowing errors they report a Result whose Status tells the caller which
// fallback branch to take and lets tests assert the exact failure mode.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Status int

const (
	OK Status = iota
	// Timeout means the call ran past its deadline.
	Timeout
	// Transport covers connection and request construction failures.
	Transport
	// BadStatus means the remote answered with a non-200 status.
	BadStatus
	// BadResponse means a 200 answer whose body was unusable.
	BadResponse
	// Skipped means the call was never made (no input, budget exhausted).
	Skipped
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Timeout:
		return "timeout"
	case Transport:
		return "transport_error"
	case BadStatus:
		return "bad_status"
	case BadResponse:
		return "bad_response"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result carries the text of a successful call or the reason it failed.
type Result struct {
	Text   string
	Status Status
	Err    error
}

func (r Result) OK() bool {
	return r.Status == OK && r.Text != ""
}

func Success(text string) Result {
	return Result{Text: text, Status: OK}
}

func Fail(status Status, err error) Result {
	return Result{Status: status, Err: err}
}

// Classify maps a transport-level error to Timeout or Transport.
func Classify(err error) Status {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Transport
}

// FromError is Fail(Classify(err), err).
func FromError(err error) Result {
	return Fail(Classify(err), err)
}
