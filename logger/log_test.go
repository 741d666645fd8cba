package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	assert := assert.New(t)

	l := New(nil, INFO)
	out := l.filterOutput("hello from world %d", time.Now().UnixNano())
	assert.Contains(out, "world")

	err := l.SetFilter("peer")
	assert.Nil(err)
	out = l.filterOutput("hello from world %d", time.Now().UnixNano())
	assert.NotContains(out, "world")
	out = l.filterOutput("Peer from world %d", time.Now().UnixNano())
	assert.NotContains(out, "world")
	out = l.filterOutput("peer from world %d", time.Now().UnixNano())
	assert.Contains(out, "world")

	err = l.SetFilter("(?i)peer")
	assert.Nil(err)
	out = l.filterOutput("Peer from world %d", time.Now().UnixNano())
	assert.Contains(out, "world")
	out = l.filterOutput("session from world %d", time.Now().UnixNano())
	assert.NotContains(out, "world")

	err = l.SetFilter("(?i)peer|Session")
	assert.Nil(err)
	out = l.filterOutput("Session from world %d", time.Now().UnixNano())
	assert.Contains(out, "world")
	out = l.filterOutput("transport or hello %d", time.Now().UnixNano())
	assert.NotContains(out, "world")

	err = l.SetFilter("(")
	assert.NotNil(err)

	la := l.limiterAvailable("hello from world")
	assert.True(la)
	l.SetLimiter(10)
	for i := 0; i < 10; i++ {
		la := l.limiterAvailable("hello from world")
		assert.True(la)
	}
	la = l.limiterAvailable("hello from world")
	assert.False(la)
	la = l.limiterAvailable("hello from world again")
	assert.True(la)
}

func TestLoggerSink(t *testing.T) {
	assert := assert.New(t)

	var lines []string
	l := New(func(msg string) { lines = append(lines, msg) }, INFO)
	l.Printf("world started on %d\n", 7000)
	l.Errorf("bind failed")
	l.Verbosef("not shown")
	l.Println("peer", 1)
	assert.Equal([]string{"world started on 7000", "bind failed", "peer 1"}, lines)

	l.SetLevel(VERBOSE)
	l.Verbosef("shown %s", "now")
	l.Debugf("still hidden")
	assert.Len(lines, 4)
	assert.Equal("shown now", lines[3])

	l.SetLevel(0)
	l.Errorf("silent")
	assert.Len(lines, 4)
}
