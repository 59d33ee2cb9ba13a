package resource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
)

type codedErr struct {
	code, msg string
}

func (e codedErr) Error() string { return e.msg }
func (e codedErr) Code() string  { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassOtherError},
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"wrapped deadline", fmt.Errorf("get stats: %w", context.DeadlineExceeded), ClassTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}, ClassTimeout},
		{"errno aborted", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNABORTED)}, ClassTimeout},
		{"code aborted", codedErr{code: "ECONNABORTED", msg: "request aborted"}, ClassTimeout},
		{"english marker", errors.New("upstream Timeout of 120000ms exceeded"), ClassTimeout},
		{"french marker", errors.New("Délai d'attente dépassé pour l'analyse"), ClassTimeout},
		{"http 500", errors.New("request failed with status code 500"), ClassOtherError},
		{"other code", codedErr{code: "ERR_BAD_RESPONSE", msg: "bad response"}, ClassOtherError},
		{"cancelled", context.Canceled, ClassOtherError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifierCustomMarkers(t *testing.T) {
	c := Classifier{Markers: []string{"zeitüberschreitung"}}
	if got := c.Classify(errors.New("Zeitüberschreitung beim Laden")); got != ClassTimeout {
		t.Errorf("custom marker = %s", got)
	}
	if got := c.Classify(errors.New("timeout")); got != ClassOtherError {
		t.Errorf("marker outside custom list = %s", got)
	}
}
