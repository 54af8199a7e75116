// Package mocks holds testify mocks of the domain ports.
package mocks

import (
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t testingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockSessionRepository mocks domain.SessionRepository.
type MockSessionRepository struct{ mock.Mock }

func NewMockSessionRepository(t testingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockSessionRepository) Create(ctx domain.Context, s domain.Session) (string, error) {
	args := m.Called(ctx, s)
	return args.String(0), args.Error(1)
}

func (m *MockSessionRepository) Get(ctx domain.Context, id string) (domain.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx domain.Context, s domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

// MockAnswerRepository mocks domain.AnswerRepository.
type MockAnswerRepository struct{ mock.Mock }

func NewMockAnswerRepository(t testingT) *MockAnswerRepository {
	m := &MockAnswerRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockAnswerRepository) Create(ctx domain.Context, a domain.Answer) (string, error) {
	args := m.Called(ctx, a)
	return args.String(0), args.Error(1)
}

func (m *MockAnswerRepository) ListBySession(ctx domain.Context, sessionID string) ([]domain.Answer, error) {
	args := m.Called(ctx, sessionID)
	v, _ := args.Get(0).([]domain.Answer)
	return v, args.Error(1)
}

func (m *MockAnswerRepository) ListByUser(ctx domain.Context, userID string, limit int) ([]domain.Answer, error) {
	args := m.Called(ctx, userID, limit)
	v, _ := args.Get(0).([]domain.Answer)
	return v, args.Error(1)
}

// MockMemoryStore mocks domain.MemoryStore.
type MockMemoryStore struct{ mock.Mock }

func NewMockMemoryStore(t testingT) *MockMemoryStore {
	m := &MockMemoryStore{}
	register(&m.Mock, t)
	return m
}

func (m *MockMemoryStore) SaveQA(ctx domain.Context, r domain.QARecord) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockMemoryStore) PreviousQA(ctx domain.Context, userID string, limit int) ([]domain.QARecord, error) {
	args := m.Called(ctx, userID, limit)
	v, _ := args.Get(0).([]domain.QARecord)
	return v, args.Error(1)
}

// MockEventPublisher mocks domain.EventPublisher.
type MockEventPublisher struct{ mock.Mock }

func NewMockEventPublisher(t testingT) *MockEventPublisher {
	m := &MockEventPublisher{}
	register(&m.Mock, t)
	return m
}

func (m *MockEventPublisher) PublishAnswerRecorded(ctx domain.Context, ev domain.AnswerRecordedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

// MockAIClient mocks domain.AIClient.
type MockAIClient struct{ mock.Mock }

func NewMockAIClient(t testingT) *MockAIClient {
	m := &MockAIClient{}
	register(&m.Mock, t)
	return m
}

func (m *MockAIClient) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	v, _ := args.Get(0).([][]float32)
	return v, args.Error(1)
}

func (m *MockAIClient) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt, opts)
	return args.String(0), args.Error(1)
}

func (m *MockAIClient) Chat(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt, opts)
	return args.String(0), args.Error(1)
}

// MockTranscriber mocks domain.Transcriber.
type MockTranscriber struct{ mock.Mock }

func NewMockTranscriber(t testingT) *MockTranscriber {
	m := &MockTranscriber{}
	register(&m.Mock, t)
	return m
}

func (m *MockTranscriber) Transcribe(ctx domain.Context, audio io.Reader, filename string) (domain.Transcript, error) {
	args := m.Called(ctx, audio, filename)
	return args.Get(0).(domain.Transcript), args.Error(1)
}

// MockQuotaLimiter mocks domain.QuotaLimiter.
type MockQuotaLimiter struct{ mock.Mock }

func NewMockQuotaLimiter(t testingT) *MockQuotaLimiter {
	m := &MockQuotaLimiter{}
	register(&m.Mock, t)
	return m
}

func (m *MockQuotaLimiter) Allow(ctx domain.Context, key string, cost int64) (bool, time.Duration, error) {
	args := m.Called(ctx, key, cost)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}
