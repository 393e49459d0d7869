package command

import (
	"context"
	"fmt"
	"time"

	"github.com/certlab/cert-prep-hub/internal/domain/achievement"
	"github.com/certlab/cert-prep-hub/internal/domain/profile"
	"github.com/certlab/cert-prep-hub/internal/domain/quiz"
	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// In-memory test doubles implementing the domain repository contracts,
// including the write-conflict semantics the handlers rely on.

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelError})
}

// ─── tx manager ───

type fakeTxManager struct {
	calls int
}

func (m *fakeTxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// ─── event publisher ───

type fakePublisher struct {
	events []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) has(eventType shared.EventType) bool {
	for _, e := range p.events {
		if e.EventType() == eventType {
			return true
		}
	}
	return false
}

// ─── question store ───

type fakeQuestionStore struct {
	questions map[quiz.QuestionID]*quiz.Question
}

func newFakeQuestionStore(questions ...*quiz.Question) *fakeQuestionStore {
	s := &fakeQuestionStore{questions: make(map[quiz.QuestionID]*quiz.Question)}
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	return s
}

func (s *fakeQuestionStore) GetByID(_ context.Context, id quiz.QuestionID) (*quiz.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return nil, shared.ErrQuestionNotFound
	}
	return q, nil
}

func (s *fakeQuestionStore) GetByIDs(_ context.Context, ids []quiz.QuestionID) (map[quiz.QuestionID]*quiz.Question, error) {
	out := make(map[quiz.QuestionID]*quiz.Question, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (s *fakeQuestionStore) Sample(_ context.Context, examType quiz.ExamType, count int) ([]*quiz.Question, error) {
	var out []*quiz.Question
	for _, q := range s.questions {
		if q.ExamType == examType {
			out = append(out, q)
		}
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, shared.ErrQuestionNotFound
	}
	return out, nil
}

// ─── session repository ───

type fakeSessionRepo struct {
	sessions map[quiz.SessionID]*quiz.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[quiz.SessionID]*quiz.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *quiz.Session) error {
	for _, s := range r.sessions {
		if s.UserID == session.UserID && !s.Status.IsTerminal() {
			return shared.ErrActiveSessionConflict
		}
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id quiz.SessionID) (*quiz.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) GetActiveByUser(_ context.Context, userID shared.UserID) (*quiz.Session, error) {
	for _, s := range r.sessions {
		if s.UserID == userID && !s.Status.IsTerminal() {
			return s, nil
		}
	}
	return nil, shared.ErrSessionNotFound
}

func (r *fakeSessionRepo) Update(_ context.Context, session *quiz.Session, expectedIndex int) error {
	stored, ok := r.sessions[session.ID]
	if !ok {
		return shared.ErrSessionNotFound
	}
	// Handlers mutate the fetched pointer in place; a distinct stored
	// instance with a moved cursor mirrors the conditional UPDATE losing
	// the race.
	if stored != session && stored.CurrentIndex != expectedIndex {
		return shared.ErrConcurrentModification
	}
	r.sessions[session.ID] = session
	return nil
}

// ─── profile repository ───

type fakeProfileRepo struct {
	profiles map[shared.UserID]*profile.Profile
	history  []profile.XPHistoryEntry
	saves    int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[shared.UserID]*profile.Profile)}
}

func (r *fakeProfileRepo) Create(_ context.Context, p *profile.Profile) error {
	if _, ok := r.profiles[p.UserID]; ok {
		return shared.ErrAlreadyExists
	}
	r.profiles[p.UserID] = p
	return nil
}

func (r *fakeProfileRepo) Get(_ context.Context, userID shared.UserID) (*profile.Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) GetForUpdate(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	return r.Get(ctx, userID)
}

func (r *fakeProfileRepo) GetOrCreateForUpdate(_ context.Context, userID shared.UserID) (*profile.Profile, error) {
	if p, ok := r.profiles[userID]; ok {
		return p, nil
	}
	p, err := profile.NewProfile(userID)
	if err != nil {
		return nil, err
	}
	r.profiles[userID] = p
	return p, nil
}

func (r *fakeProfileRepo) Save(_ context.Context, p *profile.Profile) error {
	if _, ok := r.profiles[p.UserID]; !ok {
		return shared.ErrProfileNotFound
	}
	r.profiles[p.UserID] = p
	r.saves++
	return nil
}

func (r *fakeProfileRepo) AppendXPHistory(_ context.Context, entry profile.XPHistoryEntry) error {
	r.history = append(r.history, entry)
	return nil
}

func (r *fakeProfileRepo) GetXPHistory(_ context.Context, userID shared.UserID, from, to time.Time) ([]profile.XPHistoryEntry, error) {
	var out []profile.XPHistoryEntry
	for _, e := range r.history {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ─── attempt repository ───

type fakeAttemptRepo struct {
	attempts []*quiz.Attempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{}
}

// Create mirrors the storage contract: a duplicate idempotency key is
// reported as ErrAlreadyExists without disturbing later reads, the way
// ON CONFLICT DO NOTHING leaves the transaction usable.
func (r *fakeAttemptRepo) Create(_ context.Context, attempt *quiz.Attempt) error {
	if attempt.IdempotencyKey != "" {
		for _, a := range r.attempts {
			if a.UserID == attempt.UserID && a.IdempotencyKey == attempt.IdempotencyKey {
				return shared.ErrAlreadyExists
			}
		}
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *fakeAttemptRepo) GetByID(_ context.Context, id quiz.AttemptID) (*quiz.Attempt, error) {
	for _, a := range r.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("attempt %s: %w", id, shared.ErrNotFound)
}

func (r *fakeAttemptRepo) GetByIdempotencyKey(_ context.Context, userID shared.UserID, key string) (*quiz.Attempt, error) {
	for _, a := range r.attempts {
		if a.UserID == userID && a.IdempotencyKey == key {
			return a, nil
		}
	}
	return nil, fmt.Errorf("idempotency key %s: %w", key, shared.ErrNotFound)
}

func (r *fakeAttemptRepo) ListByUser(_ context.Context, userID shared.UserID, limit, offset int) ([]*quiz.Attempt, error) {
	var out []*quiz.Attempt
	for _, a := range r.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) CountByUserAndExam(_ context.Context, userID shared.UserID, examType quiz.ExamType, since time.Time) (int, error) {
	count := 0
	for _, a := range r.attempts {
		if a.UserID == userID && a.ExamType == examType && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptRepo) AggregatesByUser(_ context.Context, userID shared.UserID) (*quiz.UserAggregates, error) {
	agg := &quiz.UserAggregates{
		AttemptsByExam:   make(map[quiz.ExamType]int),
		AccuracyByDomain: make(map[string]float64),
	}
	for _, a := range r.attempts {
		if a.UserID != userID {
			continue
		}
		agg.AttemptsByExam[a.ExamType]++
		agg.QuestionsAnswered += a.TotalQuestions
	}
	return agg, nil
}

// ─── achievement repository ───

type earnedKey struct {
	userID        shared.UserID
	achievementID achievement.AchievementID
}

type fakeAchievementRepo struct {
	defs   []*achievement.Achievement
	earned map[earnedKey]*achievement.EarnedAchievement
}

func newFakeAchievementRepo(defs ...*achievement.Achievement) *fakeAchievementRepo {
	return &fakeAchievementRepo{
		defs:   defs,
		earned: make(map[earnedKey]*achievement.EarnedAchievement),
	}
}

func (r *fakeAchievementRepo) ListDefinitions(_ context.Context) ([]*achievement.Achievement, error) {
	return r.defs, nil
}

func (r *fakeAchievementRepo) GetByID(_ context.Context, id achievement.AchievementID) (*achievement.Achievement, error) {
	for _, d := range r.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, shared.ErrAchievementNotFound
}

func (r *fakeAchievementRepo) ListEarnedIDs(_ context.Context, userID shared.UserID) (map[achievement.AchievementID]bool, error) {
	out := make(map[achievement.AchievementID]bool)
	for key := range r.earned {
		if key.userID == userID {
			out[key.achievementID] = true
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) ListEarned(_ context.Context, userID shared.UserID) ([]*achievement.EarnedAchievement, error) {
	var out []*achievement.EarnedAchievement
	for key, e := range r.earned {
		if key.userID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) Award(_ context.Context, earned *achievement.EarnedAchievement) (bool, error) {
	key := earnedKey{userID: earned.UserID, achievementID: earned.AchievementID}
	if _, ok := r.earned[key]; ok {
		return false, nil
	}
	r.earned[key] = earned
	return true, nil
}

func (r *fakeAchievementRepo) CountPerfectScores(_ context.Context, userID shared.UserID) (int, error) {
	return 0, nil
}

// fakeAchievementRepoWithPerfects overrides the perfect-score count.
type fakeAchievementRepoWithPerfects struct {
	*fakeAchievementRepo
	perfects int
}

func (r *fakeAchievementRepoWithPerfects) CountPerfectScores(_ context.Context, _ shared.UserID) (int, error) {
	return r.perfects, nil
}

// ─── question helpers ───

func testQuestion(id, examType, domain string, correct quiz.OptionLabel) *quiz.Question {
	return &quiz.Question{
		ID:       quiz.QuestionID(id),
		ExamType: quiz.ExamType(examType),
		Domain:   domain,
		Text:     "question " + id,
		Options: []quiz.Option{
			{Label: quiz.OptionA, Text: "a", Explanation: "because a"},
			{Label: quiz.OptionB, Text: "b"},
			{Label: quiz.OptionC, Text: "c"},
			{Label: quiz.OptionD, Text: "d"},
		},
		CorrectAnswer: correct,
	}
}
