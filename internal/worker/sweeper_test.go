package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"geo-chat-service/internal/logging"
	"geo-chat-service/internal/mocks"
)

func TestSweepBroadcastsEachEvictedUser(t *testing.T) {
	evictor := new(mocks.EvictorMock)
	notifier := new(mocks.NotifierMock)
	s := NewSweeper(evictor, notifier, time.Minute, 5*time.Minute, logging.Discard())

	evictor.On("EvictStale", 5*time.Minute).Return([]string{"u1", "u2"}).Once()
	notifier.On("BroadcastUserLeft", mock.Anything, "u1").Once()
	notifier.On("BroadcastUserLeft", mock.Anything, "u2").Once()

	evicted := s.Sweep(context.Background())

	assert.Equal(t, []string{"u1", "u2"}, evicted)
	evictor.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSweepNothingStale(t *testing.T) {
	evictor := new(mocks.EvictorMock)
	notifier := new(mocks.NotifierMock)
	s := NewSweeper(evictor, notifier, time.Minute, 5*time.Minute, logging.Discard())

	evictor.On("EvictStale", 5*time.Minute).Return(nil).Once()

	assert.Empty(t, s.Sweep(context.Background()))
	notifier.AssertNotCalled(t, "BroadcastUserLeft", mock.Anything, mock.Anything)
}

func TestSweepRecoversFromPanic(t *testing.T) {
	evictor := new(mocks.EvictorMock)
	notifier := new(mocks.NotifierMock)
	s := NewSweeper(evictor, notifier, time.Minute, time.Minute, logging.Discard())

	evictor.On("EvictStale", time.Minute).Return([]string{"u1"}).Once()
	notifier.On("BroadcastUserLeft", mock.Anything, "u1").Panic("boom").Once()

	require.NotPanics(t, func() {
		s.Sweep(context.Background())
	})
}

func TestRunTicksUntilCancelled(t *testing.T) {
	evictor := new(mocks.EvictorMock)
	notifier := new(mocks.NotifierMock)
	s := NewSweeper(evictor, notifier, 10*time.Millisecond, time.Minute, logging.Discard())

	ticked := make(chan struct{}, 8)
	evictor.On("EvictStale", time.Minute).Return(nil).Run(func(mock.Arguments) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-ticked:
		case <-time.After(time.Second):
			t.Fatal("sweeper did not tick")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
