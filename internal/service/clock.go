package service

import "time"

// Clock is injected wherever a transition is stamped.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
