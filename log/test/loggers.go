package test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rollkit/multida/log"
)

// TestLogger forwards entries to testing.T, so they only show up for failing tests.
type TestLogger struct {
	mtx *sync.Mutex
	T   *testing.T

	keyvals []interface{}
}

var _ log.Logger = &TestLogger{}

// NewTestLogger returns a TestLogger bound to t.
func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{mtx: &sync.Mutex{}, T: t}
}

func (t *TestLogger) Debug(msg string, keyvals ...interface{}) {
	t.log("DEBUG: ", msg, keyvals)
}

func (t *TestLogger) Info(msg string, keyvals ...interface{}) {
	t.log("INFO:  ", msg, keyvals)
}

func (t *TestLogger) Error(msg string, keyvals ...interface{}) {
	t.log("ERROR: ", msg, keyvals)
}

func (t *TestLogger) With(keyvals ...interface{}) log.Logger {
	return &TestLogger{
		mtx:     t.mtx,
		T:       t.T,
		keyvals: append(append([]interface{}{}, t.keyvals...), keyvals...),
	}
}

func (t *TestLogger) log(prefix, msg string, keyvals []interface{}) {
	t.T.Helper()
	t.mtx.Lock()
	defer t.mtx.Unlock()
	args := append([]interface{}{prefix + msg}, t.keyvals...)
	t.T.Log(append(args, keyvals...)...)
}

// MockLogger records every entry per level.
type MockLogger struct {
	mtx                             sync.Mutex
	DebugLines, InfoLines, ErrLines []string
}

var _ log.Logger = &MockLogger{}

func (t *MockLogger) Debug(msg string, keyvals ...interface{}) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.DebugLines = append(t.DebugLines, fmt.Sprint(append([]interface{}{msg}, keyvals...)...))
}

func (t *MockLogger) Info(msg string, keyvals ...interface{}) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.InfoLines = append(t.InfoLines, fmt.Sprint(append([]interface{}{msg}, keyvals...)...))
}

func (t *MockLogger) Error(msg string, keyvals ...interface{}) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.ErrLines = append(t.ErrLines, fmt.Sprint(append([]interface{}{msg}, keyvals...)...))
}

// With ignores keyvals; the lines are recorded on the same MockLogger.
func (t *MockLogger) With(keyvals ...interface{}) log.Logger {
	return t
}
