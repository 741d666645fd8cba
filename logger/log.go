package logger

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/cornelk/hashmap"
)

const (
	ERROR   = 1
	INFO    = 2
	VERBOSE = 3
	DEBUG   = 7
)

// Sink receives every message that passes the level, filter and limiter.
type Sink func(msg string)

type Logger struct {
	level   int
	limiter int
	filter  *regexp.Regexp
	counter *hashmap.HashMap
	sink    Sink
}

func StdSink(msg string) {
	log.Print(msg)
}

func New(sink Sink, level int) *Logger {
	if sink == nil {
		sink = StdSink
	}
	return &Logger{
		level:   level,
		counter: &hashmap.HashMap{},
		sink:    sink,
	}
}

func (l *Logger) SetLevel(level int) {
	l.level = level
}

func (l *Logger) Level() int {
	return l.level
}

func (l *Logger) SetLimiter(limit int) {
	l.limiter = limit
}

func (l *Logger) SetFilter(pattern string) error {
	if pattern == "" {
		l.filter = nil
		return nil
	}
	// https://github.com/google/re2/wiki/Syntax
	reg, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	l.filter = reg
	return nil
}

func (l *Logger) Println(v ...any) {
	if l.level >= INFO {
		l.sink(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
	}
}

func (l *Logger) Printf(format string, v ...any) {
	l.printfAtLevel(INFO, format, v...)
}

func (l *Logger) Errorf(format string, v ...any) {
	l.printfAtLevel(ERROR, format, v...)
}

func (l *Logger) Verbosef(format string, v ...any) {
	l.printfAtLevel(VERBOSE, format, v...)
}

func (l *Logger) Debugf(format string, v ...any) {
	l.printfAtLevel(DEBUG, format, v...)
}

func (l *Logger) printfAtLevel(level int, format string, v ...any) {
	if l.level < level {
		return
	}
	out := l.filterOutput(format, v...)
	if out == "" {
		return
	}
	if !l.limiterAvailable(out) {
		return
	}
	l.sink(strings.TrimSuffix(out, "\n"))
}

func (l *Logger) limiterAvailable(out string) bool {
	if l.limiter == 0 {
		return true
	}
	var i int64
	val, _ := l.counter.GetOrInsert(out, &i)
	actual := (val).(*int64)
	count := atomic.AddInt64(actual, 1)
	return count <= int64(l.limiter)
}

func (l *Logger) filterOutput(format string, v ...any) string {
	out := fmt.Sprintf(format, v...)
	if l.filter == nil || l.filter.MatchString(out) {
		return out
	}
	return ""
}
