package bdispatch

import (
	"log"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledServeError(err error)
	LogImplicitFlushError(err error)
	LogBodyCleanupError(err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("bdispatch: unhandled server error: %s", err)
}

func (l stdLogger) LogImplicitFlushError(err error) {
	l.Logger.Printf("bdispatch: error while flushing implicitly: %s", err)
}

func (l stdLogger) LogBodyCleanupError(err error) {
	l.Logger.Printf("bdispatch: error while cleaning up request body: %s", err)
}

func NewStdLogger(l *log.Logger) Logger {
	return stdLogger{l}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogImplicitFlushError  int64
	NumLogBodyCleanupError    int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("bdispatch: unhandled server error: %s", err)
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("bdispatch: error while flushing implicitly: %s", err)
}

func (l *TestLogger) LogBodyCleanupError(err error) {
	atomic.AddInt64(&l.NumLogBodyCleanupError, 1)
	l.tb.Logf("bdispatch: error while cleaning up request body: %s", err)
}

var _ Logger = &TestLogger{}
