package app

import (
	"math/rand"
	"sync"
	"time"

	"scholarship-exam-service/internal/domain"
)

// Shuffler produces per-candidate papers. It is safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewShuffler seeds from the clock when src is nil.
func NewShuffler(src rand.Source) *Shuffler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Shuffler{rnd: rand.New(src)}
}

// Permutation returns a Fisher–Yates shuffle of [0, n).
func (s *Shuffler) Permutation(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// ShuffleOptions returns the displayed options and optionMap[display] = original.
func (s *Shuffler) ShuffleOptions(options []string) ([]string, []int) {
	perm := s.Permutation(len(options))
	shuffled := make([]string, len(options))
	for display, original := range perm {
		shuffled[display] = options[original]
	}
	return shuffled, perm
}

// Paper builds a freshly randomized view of exam. Question order within each
// section is shuffled too; unknown question references are skipped.
func (s *Shuffler) Paper(exam domain.Exam) domain.Paper {
	idx := exam.QuestionIndex()
	paper := domain.Paper{
		TestID:        exam.Test.ID,
		Description:   exam.Test.Description,
		StartDateTime: exam.Test.StartDateTime,
		EndDateTime:   exam.Test.EndDateTime(),
		Sections:      make([]domain.PaperSection, 0, len(exam.Test.Sections)),
	}
	for _, section := range exam.Test.Sections {
		questions := make([]domain.PaperQuestion, 0, len(section.QuestionIDs))
		for _, pos := range s.Permutation(len(section.QuestionIDs)) {
			q, ok := idx[section.QuestionIDs[pos]]
			if !ok {
				continue
			}
			options, optionMap := s.ShuffleOptions(q.Options)
			questions = append(questions, domain.PaperQuestion{
				ID:        q.ID,
				Question:  q.Text,
				Options:   options,
				OptionMap: optionMap,
			})
		}
		paper.Sections = append(paper.Sections, domain.PaperSection{Name: section.Name, Questions: questions})
	}
	return paper
}

// isPermutation reports whether m is a permutation of [0, n).
func isPermutation(m []int, n int) bool {
	if len(m) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range m {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
