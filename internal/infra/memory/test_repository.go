package memory

import (
	"context"
	"sync"

	"scholarship-exam-service/internal/domain"
)

// TestRepository keeps tests, questions and sessions in process memory.
type TestRepository struct {
	mu        sync.RWMutex
	tests     map[string]domain.Test
	questions map[string]domain.Question
	sessions  map[string]domain.Session
}

func NewTestRepository() *TestRepository {
	return &TestRepository{
		tests:     make(map[string]domain.Test),
		questions: make(map[string]domain.Question),
		sessions:  make(map[string]domain.Session),
	}
}

func (r *TestRepository) LoadExam(_ context.Context, testID string) (domain.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	test, ok := r.tests[testID]
	if !ok {
		return domain.Exam{}, domain.ErrTestNotFound
	}
	exam := domain.Exam{Test: cloneTest(test)}
	for _, section := range test.Sections {
		for _, id := range section.QuestionIDs {
			if q, ok := r.questions[id]; ok {
				exam.Questions = append(exam.Questions, q)
			}
		}
	}
	return exam, nil
}

func (r *TestRepository) GetTest(_ context.Context, id string) (domain.Test, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	test, ok := r.tests[id]
	if !ok {
		return domain.Test{}, domain.ErrTestNotFound
	}
	return cloneTest(test), nil
}

func (r *TestRepository) CreateTest(_ context.Context, t domain.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tests[t.ID]; ok {
		return domain.ErrDuplicate
	}
	r.tests[t.ID] = cloneTest(t)
	return nil
}

func (r *TestRepository) UpdateTest(_ context.Context, t domain.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tests[t.ID]; !ok {
		return domain.ErrTestNotFound
	}
	r.tests[t.ID] = cloneTest(t)
	return nil
}

func (r *TestRepository) DeleteTest(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tests[id]; !ok {
		return domain.ErrTestNotFound
	}
	delete(r.tests, id)
	for qid, q := range r.questions {
		if q.TestID == id {
			delete(r.questions, qid)
		}
	}
	return nil
}

func (r *TestRepository) AddQuestion(_ context.Context, q domain.Question, edit domain.SectionEdit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[q.TestID]
	if !ok {
		return domain.ErrTestNotFound
	}
	sections, err := edit(cloneTest(test))
	if err != nil {
		return err
	}
	r.questions[q.ID] = q
	test.Sections = sections
	r.tests[q.TestID] = cloneTest(test)
	return nil
}

func (r *TestRepository) DeleteQuestion(_ context.Context, testID, questionID string, edit domain.SectionEdit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	test, ok := r.tests[testID]
	if !ok {
		return domain.ErrTestNotFound
	}
	sections, err := edit(cloneTest(test))
	if err != nil {
		return err
	}
	if q, ok := r.questions[questionID]; !ok || q.TestID != testID {
		return domain.ErrQuestionNotFound
	}
	delete(r.questions, questionID)
	test.Sections = sections
	r.tests[testID] = cloneTest(test)
	return nil
}

func (r *TestRepository) GetSession(_ context.Context, id string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (r *TestRepository) CreateSession(_ context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Year == s.Year {
			return domain.ErrDuplicate
		}
	}
	r.sessions[s.ID] = s
	return nil
}

func cloneTest(t domain.Test) domain.Test {
	sections := make([]domain.Section, len(t.Sections))
	for i, s := range t.Sections {
		sections[i] = domain.Section{Name: s.Name, QuestionIDs: append([]string(nil), s.QuestionIDs...)}
	}
	t.Sections = sections
	return t
}
