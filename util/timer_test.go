package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimer(t *testing.T) {
	require := require.New(t)

	timer := NewTimer(10 * time.Millisecond)
	<-timer.C()
	timer.Fired()
	timer.Reset(10 * time.Millisecond)
	select {
	case <-timer.C():
		timer.Fired()
	case <-time.After(time.Second):
		require.Fail("timer not fired after reset")
	}

	timer.Reset(time.Hour)
	time.Sleep(5 * time.Millisecond)
	timer.Reset(10 * time.Millisecond)
	select {
	case <-timer.C():
		timer.Fired()
	case <-time.After(time.Second):
		require.Fail("timer not fired after early reset")
	}

	timer.Reset(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	timer.Reset(time.Hour)
	select {
	case <-timer.C():
		require.Fail("stale expiry delivered")
	case <-time.After(30 * time.Millisecond):
	}
	timer.Stop()
}
