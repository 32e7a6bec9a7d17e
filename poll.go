package enc28j60

import (
	"time"

	"github.com/jpillora/backoff"
)

const (
	pollMinWait = 10 * time.Microsecond
	pollMaxWait = 5 * time.Millisecond
)

// poll calls done until it reports true, returns an error, or timeout elapses.
// The first call happens immediately so a condition already met costs one status read.
// Between calls poll sleeps with exponential backoff.
func poll(op string, timeout time.Duration, done func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	bo := backoff.Backoff{
		Min:    pollMinWait,
		Max:    pollMaxWait,
		Factor: 2,
	}
	for polls := 1; ; polls++ {
		ok, err := done()
		if err != nil {
			return err
		} else if ok {
			return nil
		}
		now := time.Now()
		if !now.Before(deadline) {
			return &TimeoutError{Op: op, Polls: polls}
		}
		wait := bo.Duration()
		if remaining := deadline.Sub(now); wait > remaining {
			wait = remaining
		}
		time.Sleep(wait)
	}
}
