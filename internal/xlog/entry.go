/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package xlog

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	std  = logrus.New()
	once sync.Once
)

// SetOutput lets a host application redirect the backend logger, e.g. to a
// file hook or syslog writer, without touching call sites.
func SetOutput(l *logrus.Logger) {
	once.Do(func() {})
	std = l
}

// Logger is the minimal structured-logging surface every engine package logs
// through; Entry is the only way to emit a line.
type Logger interface {
	Entry(lvl Level, msg string) *Entry
}

type logger struct {
	fields logrus.Fields
}

// New returns a Logger carrying the given static fields (e.g. component="h2",
// conn=<id>) on every Entry it creates.
func New(fields map[string]interface{}) Logger {
	return &logger{fields: logrus.Fields(fields)}
}

func (l *logger) Entry(lvl Level, msg string) *Entry {
	var fields logrus.Fields
	if len(l.fields) > 0 {
		fields = make(logrus.Fields, len(l.fields))
		for k, v := range l.fields {
			fields[k] = v
		}
	}
	return &Entry{
		lvl:    lvl,
		msg:    msg,
		fields: fields,
		at:     time.Now(),
	}
}

// Entry is a single structured log line under construction; it is not safe
// for concurrent use, matching one call site's lifetime.
type Entry struct {
	lvl    Level
	msg    string
	fields logrus.Fields
	errs   []error
	at     time.Time
}

// Field attaches one key/value pair to the entry and returns it for chaining.
func (e *Entry) Field(key string, val interface{}) *Entry {
	if e.fields == nil {
		e.fields = make(logrus.Fields, 4)
	}
	e.fields[key] = val
	return e
}

// ErrorAdd records errors on the entry. When check is true and any error is
// non-nil, the entry's level is escalated to ErrorLevel before Log/Check.
func (e *Entry) ErrorAdd(check bool, errs ...error) *Entry {
	for _, err := range errs {
		if err != nil {
			e.errs = append(e.errs, err)
		}
	}
	if check && len(e.errs) > 0 && e.lvl > ErrorLevel {
		e.lvl = ErrorLevel
	}
	return e
}

// Log unconditionally emits the entry at its current level.
func (e *Entry) Log() {
	if e.lvl == NilLevel {
		return
	}
	f := e.fields
	if len(e.errs) > 0 {
		if f == nil {
			f = make(logrus.Fields, 1)
		}
		strs := make([]string, 0, len(e.errs))
		for _, er := range e.errs {
			strs = append(strs, er.Error())
		}
		f["error"] = strs
	}
	std.WithFields(f).WithTime(e.at).Log(e.lvl.logrus(), e.msg)
}

// Check emits the entry only if it carries at least one error, at the given
// fallback level when no error escalated it already — the pattern the
// teacher uses for health checks that should stay quiet on the happy path.
func (e *Entry) Check(fallback Level) {
	if len(e.errs) == 0 {
		return
	}
	if e.lvl == NilLevel {
		e.lvl = fallback
	}
	e.Log()
}
