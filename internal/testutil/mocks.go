package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mealscan/mealscan-api/internal/ai"
	"github.com/mealscan/mealscan-api/internal/cache"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/nutrition"
	"github.com/mealscan/mealscan-api/internal/pipeline"
	"github.com/mealscan/mealscan-api/internal/repository"
)

// --- MockVisionProvider ---

// MockVisionProvider is a mock implementation of ai.VisionProvider.
type MockVisionProvider struct {
	AnalyzeMealImageFunc func(ctx context.Context, imageData []byte, hint string) (*ai.MealObservation, error)
}

func (m *MockVisionProvider) AnalyzeMealImage(ctx context.Context, imageData []byte, hint string) (*ai.MealObservation, error) {
	if m.AnalyzeMealImageFunc != nil {
		return m.AnalyzeMealImageFunc(ctx, imageData, hint)
	}
	return nil, fmt.Errorf("AnalyzeMealImage not configured")
}

// --- MockTextProvider ---

// MockTextProvider is a mock implementation of ai.TextProvider.
type MockTextProvider struct {
	AnalyzeMealTextFunc func(ctx context.Context, text string) (*ai.MealObservation, error)
}

func (m *MockTextProvider) AnalyzeMealText(ctx context.Context, text string) (*ai.MealObservation, error) {
	if m.AnalyzeMealTextFunc != nil {
		return m.AnalyzeMealTextFunc(ctx, text)
	}
	return nil, fmt.Errorf("AnalyzeMealText not configured")
}

// --- MockClarifyProvider ---

// MockClarifyProvider is a mock implementation of ai.ClarifyProvider.
type MockClarifyProvider struct {
	ComposeClarificationQuestionFunc func(ctx context.Context, description string, itemNames []string) (string, error)
}

func (m *MockClarifyProvider) ComposeClarificationQuestion(ctx context.Context, description string, itemNames []string) (string, error) {
	if m.ComposeClarificationQuestionFunc != nil {
		return m.ComposeClarificationQuestionFunc(ctx, description, itemNames)
	}
	return "", fmt.Errorf("ComposeClarificationQuestion not configured")
}

// --- MockSpeechProvider ---

// MockSpeechProvider is a mock implementation of ai.SpeechProvider.
type MockSpeechProvider struct {
	TranscribeAudioFunc func(ctx context.Context, audioData []byte) (string, error)
}

func (m *MockSpeechProvider) TranscribeAudio(ctx context.Context, audioData []byte) (string, error) {
	if m.TranscribeAudioFunc != nil {
		return m.TranscribeAudioFunc(ctx, audioData)
	}
	return "", fmt.Errorf("TranscribeAudio not configured")
}

// --- MockLookupProvider ---

// MockLookupProvider is a mock implementation of nutrition.LookupProvider.
type MockLookupProvider struct {
	LookupFoodFunc func(ctx context.Context, name string) (*models.PerHundredGram, error)
}

func (m *MockLookupProvider) LookupFood(ctx context.Context, name string) (*models.PerHundredGram, error) {
	if m.LookupFoodFunc != nil {
		return m.LookupFoodFunc(ctx, name)
	}
	return nil, fmt.Errorf("LookupFood not configured")
}

// --- StubProvider ---

// StubProvider is a canned pipeline.Provider that records how often it ran.
type StubProvider struct {
	IDValue    models.ProviderID
	Modalities map[models.Modality]bool
	Result     models.ProviderResult

	mu    sync.Mutex
	calls int
}

func (s *StubProvider) ID() models.ProviderID { return s.IDValue }

func (s *StubProvider) Supports(m models.Modality) bool {
	if s.Modalities == nil {
		return true
	}
	return s.Modalities[m]
}

func (s *StubProvider) Timeout() time.Duration { return time.Second }

func (s *StubProvider) Analyze(_ context.Context, _ *models.AnalysisRequest) models.ProviderResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	result := s.Result
	result.Source = s.IDValue
	return result
}

// Calls reports how many times Analyze ran.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// --- MockSessionRepo ---

// MockSessionRepo is an in-memory implementation of repository.SessionRepo.
type MockSessionRepo struct {
	mu       sync.Mutex
	Sessions map[string]*models.ClarificationSession
}

// NewMockSessionRepo creates an empty MockSessionRepo.
func NewMockSessionRepo() *MockSessionRepo {
	return &MockSessionRepo{Sessions: make(map[string]*models.ClarificationSession)}
}

func (m *MockSessionRepo) CreateSession(session *models.ClarificationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sessions {
		if s.UserID == session.UserID && s.State == models.SessionAwaitingClarification {
			s.State = models.SessionExpired
		}
	}
	cp := *session
	m.Sessions[session.SessionKey] = &cp
	return nil
}

func (m *MockSessionRepo) GetActiveSessionByKey(sessionKey string, now time.Time) (*models.ClarificationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.Sessions[sessionKey]
	if !ok || session.State != models.SessionAwaitingClarification || session.Expired(now) {
		return nil, repository.NewNotFoundError("clarification session not found")
	}
	cp := *session
	return &cp, nil
}

func (m *MockSessionRepo) InvalidateUserSessions(userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sessions {
		if s.UserID == userID && s.State == models.SessionAwaitingClarification {
			s.State = models.SessionExpired
		}
	}
	return nil
}

func (m *MockSessionRepo) MarkResolved(sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Sessions[sessionKey]; ok {
		s.State = models.SessionResolved
	}
	return nil
}

func (m *MockSessionRepo) DeleteExpired(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key, s := range m.Sessions {
		if s.Expired(now) {
			delete(m.Sessions, key)
			removed++
		}
	}
	return removed, nil
}

// ActiveSessionFor returns the awaiting session for a user, or nil.
func (m *MockSessionRepo) ActiveSessionFor(userID uint) *models.ClarificationSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sessions {
		if s.UserID == userID && s.State == models.SessionAwaitingClarification {
			cp := *s
			return &cp
		}
	}
	return nil
}

// --- MockMealLogRepo ---

// MockMealLogRepo is an in-memory implementation of repository.MealLogRepo.
type MockMealLogRepo struct {
	mu     sync.Mutex
	nextID uint
	Logs   []*models.MealLog
}

// NewMockMealLogRepo creates an empty MockMealLogRepo.
func NewMockMealLogRepo() *MockMealLogRepo {
	return &MockMealLogRepo{nextID: 1}
}

func (m *MockMealLogRepo) CreateMealLog(log *models.MealLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = m.nextID
	m.nextID++
	cp := *log
	m.Logs = append(m.Logs, &cp)
	return nil
}

func (m *MockMealLogRepo) GetUserMealLogs(userID uint, page, perPage int) ([]models.MealLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var logs []models.MealLog
	for _, l := range m.Logs {
		if l.UserID == userID {
			logs = append(logs, *l)
		}
	}
	return logs, int64(len(logs)), nil
}

func (m *MockMealLogRepo) GetMealLogByID(id uint) (*models.MealLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.Logs {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.NewNotFoundError("meal log not found")
}

func (m *MockMealLogRepo) UpdateMealLogPhotoURL(id uint, photoURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.Logs {
		if l.ID == id {
			l.PhotoURL = photoURL
			return nil
		}
	}
	return repository.NewNotFoundError("meal log not found")
}

// Count returns the number of stored logs.
func (m *MockMealLogRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Logs)
}

// --- FakeClock ---

// FakeClock is a manually advanced clock for TTL tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock pinned to the given instant.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Compile-time interface checks.
var (
	_ ai.VisionProvider        = (*MockVisionProvider)(nil)
	_ ai.TextProvider          = (*MockTextProvider)(nil)
	_ ai.ClarifyProvider       = (*MockClarifyProvider)(nil)
	_ ai.SpeechProvider        = (*MockSpeechProvider)(nil)
	_ nutrition.LookupProvider = (*MockLookupProvider)(nil)
	_ pipeline.Provider        = (*StubProvider)(nil)
	_ repository.SessionRepo   = (*MockSessionRepo)(nil)
	_ repository.MealLogRepo   = (*MockMealLogRepo)(nil)
	_ cache.Clock              = (*FakeClock)(nil)
)
