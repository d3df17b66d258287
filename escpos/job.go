package escpos

import (
	"errors"
	"sync/atomic"
)

// ErrJobConsumed is returned when a job is encoded a second time.
var ErrJobConsumed = errors.New("print job already consumed")

// Job is an ordered list of directives. It is built once and consumed once.
type Job struct {
	directives []Directive
	consumed   atomic.Bool
}

// NewJob returns a job running directives in the given order.
func NewJob(directives ...Directive) *Job {
	return &Job{directives: directives}
}

// Directives returns the job's directives in order.
func (j *Job) Directives() []Directive {
	return append([]Directive(nil), j.directives...)
}

// Len returns the number of directives.
func (j *Job) Len() int {
	return len(j.directives)
}

// Encode consumes the job and returns its ESC/POS byte stream.
func (j *Job) Encode() ([]byte, error) {
	if !j.consumed.CompareAndSwap(false, true) {
		return nil, ErrJobConsumed
	}

	var (
		b   []byte
		err error
	)
	for _, d := range j.directives {
		if b, err = d.Append(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}
