package logx

import (
	"fmt"
	"maps"
)

// Entry is an immutable set of fields and an optional error. Every With*
// call returns a new Entry, so a base entry can be shared between goroutines.
type Entry struct {
	logger *Logger
	fields Fields
	err    error
}

func newEntry(logger *Logger) *Entry {
	return &Entry{logger: logger}
}

func (e *Entry) with(fields Fields) *Entry {
	next := &Entry{logger: e.logger, err: e.err, fields: make(Fields, len(e.fields)+len(fields))}
	maps.Copy(next.fields, e.fields)
	maps.Copy(next.fields, fields)
	return next
}

func (e *Entry) WithField(key string, value any) *Entry {
	return e.with(Fields{key: value})
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return e.with(fields)
}

func (e *Entry) WithError(err error) *Entry {
	next := e.with(nil)
	next.err = err
	return next
}

func (e *Entry) Debug(msg string) { e.logger.log(LevelDebug, msg, e.fields, e.err) }
func (e *Entry) Info(msg string)  { e.logger.log(LevelInfo, msg, e.fields, e.err) }
func (e *Entry) Warn(msg string)  { e.logger.log(LevelWarn, msg, e.fields, e.err) }
func (e *Entry) Error(msg string) { e.logger.log(LevelError, msg, e.fields, e.err) }

// Fatal logs and exits the process.
func (e *Entry) Fatal(msg string) { e.logger.log(LevelFatal, msg, e.fields, e.err) }

func (e *Entry) Debugf(format string, args ...any) {
	e.logger.log(LevelDebug, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Infof(format string, args ...any) {
	e.logger.log(LevelInfo, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Warnf(format string, args ...any) {
	e.logger.log(LevelWarn, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Errorf(format string, args ...any) {
	e.logger.log(LevelError, fmt.Sprintf(format, args...), e.fields, e.err)
}
