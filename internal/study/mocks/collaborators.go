package mocks

import (
	"context"

	"go_voicecards/internal/study"

	"github.com/stretchr/testify/mock"
)

// Credentials は study.Credentials のモック
type Credentials struct {
	mock.Mock
}

func (m *Credentials) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Navigator は study.Navigator のモック
type Navigator struct {
	mock.Mock
}

func (m *Navigator) ToLogin() {
	m.Called()
}

func (m *Navigator) ToDeck(deckID int) {
	m.Called(deckID)
}

func (m *Navigator) ShowDone(deckName string) {
	m.Called(deckName)
}

// Notifier は study.Notifier のモック
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Notify(msg string) {
	m.Called(msg)
}

func (m *Notifier) StateChanged(state study.State) {
	m.Called(state)
}
