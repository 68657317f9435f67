package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"geo-chat-service/internal/models"
)

type EvictorMock struct {
	mock.Mock
}

func (m *EvictorMock) EvictStale(threshold time.Duration) []string {
	args := m.Called(threshold)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) BroadcastUserLeft(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

type StatsProviderMock struct {
	mock.Mock
}

func (m *StatsProviderMock) Stats() models.Stats {
	args := m.Called()
	var stats models.Stats
	if val := args.Get(0); val != nil {
		stats = val.(models.Stats)
	}
	return stats
}

type ConnCounterMock struct {
	mock.Mock
}

func (m *ConnCounterMock) Count() int {
	args := m.Called()
	return args.Int(0)
}
