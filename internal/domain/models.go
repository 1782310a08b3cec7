package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TestDuration is the fixed length of every admission window.
const TestDuration = 100 * time.Minute

// MaxQuestionsPerSection caps the question list of a single section.
const MaxQuestionsPerSection = 25

// SectionName is drawn from a fixed enumeration.
type SectionName string

const (
	SectionPhysics     SectionName = "PHYSICS"
	SectionChemistry   SectionName = "CHEMISTRY"
	SectionMathematics SectionName = "MATHEMATICS"
	SectionBiology     SectionName = "BIOLOGY"
	SectionGeneral     SectionName = "GENERAL"
)

var sectionNames = map[SectionName]struct{}{
	SectionPhysics:     {},
	SectionChemistry:   {},
	SectionMathematics: {},
	SectionBiology:     {},
	SectionGeneral:     {},
}

// Valid reports whether the name belongs to the section enumeration.
func (n SectionName) Valid() bool {
	_, ok := sectionNames[n]
	return ok
}

// Section holds an ordered list of question references.
type Section struct {
	Name        SectionName `json:"name"`
	QuestionIDs []string    `json:"questions"`
}

// Test is a scheduled, optionally paid examination.
type Test struct {
	ID            string          `json:"id"`
	InstructorID  string          `json:"instructorId"`
	Description   string          `json:"description"`
	Sections      []Section       `json:"sections"`
	StartDateTime time.Time       `json:"startDateTime"`
	Price         decimal.Decimal `json:"price"`
	Published     bool            `json:"published"`
	Stream        string          `json:"stream"`
	SessionID     string          `json:"sessionId"`
}

// EndDateTime closes the admission window.
func (t Test) EndDateTime() time.Time {
	return t.StartDateTime.Add(TestDuration)
}

// WindowOpen reports whether now lies in [start, start+100min].
func (t Test) WindowOpen(now time.Time) bool {
	return !now.Before(t.StartDateTime) && !now.After(t.EndDateTime())
}

// RequiresPayment is false for free tests.
func (t Test) RequiresPayment() bool {
	return t.Price.IsPositive()
}

// Section returns the section with the given name.
func (t Test) Section(name SectionName) (Section, int, bool) {
	for i, s := range t.Sections {
		if s.Name == name {
			return s, i, true
		}
	}
	return Section{}, -1, false
}

// SectionEdit computes a test's new sections from the stored test. Stores call it
// while holding the test exclusively, so its checks see committed state.
type SectionEdit func(current Test) ([]Section, error)

// Question is a single-answer MCQ.
type Question struct {
	ID                 string   `json:"id"`
	TestID             string   `json:"testId"`
	Text               string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

// Exam bundles a test with its question bank; it is what caches hold.
type Exam struct {
	Test      Test       `json:"test"`
	Questions []Question `json:"questions"`
}

// QuestionIndex maps question IDs to questions.
func (e Exam) QuestionIndex() map[string]Question {
	idx := make(map[string]Question, len(e.Questions))
	for _, q := range e.Questions {
		idx[q.ID] = q
	}
	return idx
}

// Session is an admission cycle (one per year).
type Session struct {
	ID         string `json:"id"`
	Year       int    `json:"year"`
	CommonName string `json:"commonName"`
}

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// Identity is the authenticated caller.
type Identity struct {
	UID  string
	Name string
	Role Role
	// Source names the resolver step that produced Role.
	Source string
}

// Candidate is the stored profile of an exam taker.
type Candidate struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	FatherName  string `json:"fatherName"`
	MotherName  string `json:"motherName"`
	PhoneNumber string `json:"phoneNumber"`
	Role        Role   `json:"role"`
}

// AnswerRecord is a scored answer as persisted on the attempt.
type AnswerRecord struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"`
	OptionMap      []int  `json:"optionMap"`
	IsCorrect      bool   `json:"isCorrect"`
}

// Attempt is one candidate's progress on one test.
type Attempt struct {
	ID          string         `json:"id"`
	CandidateID string         `json:"candidateId"`
	TestID      string         `json:"testId"`
	Answers     []AnswerRecord `json:"answers"`
	Score       float64        `json:"score"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// State derives the state machine position of a stored attempt.
func (a Attempt) State() AttemptState {
	if a.CompletedAt != nil {
		return StateCompleted
	}
	return StateStarted
}

// PaperQuestion is a question as served: shuffled options, no answer key.
type PaperQuestion struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	OptionMap []int    `json:"optionMap"`
}

type PaperSection struct {
	Name      SectionName     `json:"name"`
	Questions []PaperQuestion `json:"questions"`
}

// Paper is the randomized view returned by start.
type Paper struct {
	TestID        string         `json:"testId"`
	Description   string         `json:"description"`
	StartDateTime time.Time      `json:"startDateTime"`
	EndDateTime   time.Time      `json:"endDateTime"`
	Sections      []PaperSection `json:"sections"`
}

// SubmittedAnswer is one entry of a submit payload.
type SubmittedAnswer struct {
	QuestionID     string `json:"questionId" validate:"required"`
	SelectedOption *int   `json:"selectedOption" validate:"required,min=0"`
	OptionMap      []int  `json:"optionMap" validate:"required,min=2"`
}

// AnswerOutcome never carries the correct option.
type AnswerOutcome struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"`
	IsCorrect      bool   `json:"isCorrect"`
}

type SubmitResult struct {
	Score   float64         `json:"score"`
	Answers []AnswerOutcome `json:"answers"`
}

// AttemptResult is the candidate-facing view of a stored attempt.
type AttemptResult struct {
	ExpectedScore float64         `json:"expectedScore"`
	Answers       []AnswerOutcome `json:"answers"`
	CompletedAt   *time.Time      `json:"completedAt"`
}

// RankedEntry is a derived leaderboard row.
type RankedEntry struct {
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	FatherName  string    `json:"fatherName"`
	MotherName  string    `json:"motherName"`
	PhoneNumber string    `json:"phoneNumber"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
	Rank        int       `json:"rank"`
}

// Ranking is a computed leaderboard with the metadata the export needs.
type Ranking struct {
	Test    Test          `json:"test"`
	Session Session       `json:"session"`
	Entries []RankedEntry `json:"entries"`
}

// Leaderboard is the live snapshot pushed to subscribers.
type Leaderboard struct {
	TestID    string        `json:"testId"`
	Entries   []RankedEntry `json:"entries"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ScorecardRow is one ranked row inside a queued job.
type ScorecardRow struct {
	UID        string  `json:"UID"`
	Name       string  `json:"Name"`
	Rank       int     `json:"Rank"`
	Score      float64 `json:"Score"`
	FatherName string  `json:"FatherName"`
	MotherName string  `json:"MotherName"`
}

// ScorecardJob is the queue message contract of the artifact pipeline.
type ScorecardJob struct {
	Year       int            `json:"year"`
	Stream     string         `json:"stream"`
	CommonName string         `json:"commonName"`
	Rows       []ScorecardRow `json:"rows"`
}
