// Package ratelog rate-limits repeated warning lines so a pathological
// upstream (e.g. one emitting late CTS on every packet) cannot flood the
// log. It generalizes the ad hoc time.Since(lastWarnAt) checks the teacher
// uses around its TS-inspector underflow warnings into a reusable limiter
// built on golang.org/x/time/rate.Sometimes.
package ratelog

import (
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Logger rate-limits a family of related warnings under one key.
type Logger struct {
	limiters map[string]*rate.Sometimes
	interval time.Duration
}

// New returns a Logger that allows at most one message per key every
// interval (plus always the first occurrence).
func New(interval time.Duration) *Logger {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Logger{limiters: map[string]*rate.Sometimes{}, interval: interval}
}

func (l *Logger) Warnf(key, format string, args ...any) {
	l.sometimes(key).Do(func() {
		log.Printf("reframer: warn: "+format, args...)
	})
}

func (l *Logger) sometimes(key string) *rate.Sometimes {
	s, ok := l.limiters[key]
	if !ok {
		s = &rate.Sometimes{Interval: l.interval}
		l.limiters[key] = s
	}
	return s
}
