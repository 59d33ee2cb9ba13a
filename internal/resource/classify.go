package resource

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Class is the outcome category of a failed remote call.
type Class int

const (
	ClassOtherError Class = iota
	ClassTimeout
)

func (c Class) String() string {
	if c == ClassTimeout {
		return "TIMEOUT"
	}
	return "OTHER_ERROR"
}

// CodeConnAborted is the machine code transports attach to aborted connections.
const CodeConnAborted = "ECONNABORTED"

// Classifier decides whether an error is a slow call (worth a retry prompt)
// or a plain failure.
type Classifier struct {
	// Markers are lowercase substrings that mark an error message as a
	// timeout. Only consulted when no structured signal is present.
	Markers []string
	// Codes are machine codes that mean the connection was aborted.
	Codes []string
}

// DefaultClassifier recognizes English and French timeout wording.
var DefaultClassifier = Classifier{
	Markers: []string{"timeout", "timed out", "délai d'attente", "expiré"},
	Codes:   []string{CodeConnAborted},
}

type coder interface {
	Code() string
}

type timeouter interface {
	Timeout() bool
}

// Classify returns ClassTimeout for deadline, network-timeout and
// connection-abort signals, and ClassOtherError for everything else.
func (c Classifier) Classify(err error) Class {
	if err == nil {
		return ClassOtherError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	var to timeouter
	if errors.As(err, &to) && to.Timeout() {
		return ClassTimeout
	}
	for _, errno := range []error{syscall.ETIMEDOUT, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return ClassTimeout
		}
	}
	var cd coder
	if errors.As(err, &cd) {
		code := cd.Code()
		for _, want := range c.Codes {
			if strings.EqualFold(code, want) {
				return ClassTimeout
			}
		}
	}

	lower := strings.ToLower(err.Error())
	for _, marker := range c.Markers {
		if marker != "" && strings.Contains(lower, marker) {
			return ClassTimeout
		}
	}
	return ClassOtherError
}

// Classify uses DefaultClassifier.
func Classify(err error) Class {
	return DefaultClassifier.Classify(err)
}
