package app

import (
	"math"

	"github.com/go-playground/validator/v10"

	"scholarship-exam-service/internal/domain"
)

// Marks are counted in thirds so a total only becomes a float once.
const (
	correctThirds   = 6
	incorrectThirds = -1

	CorrectMarks   = correctThirds / 3.0
	IncorrectMarks = incorrectThirds / 3.0
)

// FloorPolicy decides what happens to negative totals.
type FloorPolicy int

const (
	// UnboundedScore leaves negative totals as they are.
	UnboundedScore FloorPolicy = iota
	// ZeroFloor raises negative totals to zero.
	ZeroFloor
)

// ScoreFloor is the policy applied to every submission.
const ScoreFloor = UnboundedScore

// Score returns the total for the given answer counts. Equal counts always
// produce the identical value regardless of answer order.
func Score(correct, incorrect int) float64 {
	thirds := correct*correctThirds + incorrect*incorrectThirds
	if ScoreFloor == ZeroFloor && thirds < 0 {
		thirds = 0
	}
	return float64(thirds) / 3
}

// scoreThirds is the exact comparison key of a stored score.
func scoreThirds(score float64) int64 {
	return int64(math.Round(score * 3))
}

var validate = validator.New()

// ScoreAnswers validates and scores a submission against exam. Invalid answers
// and repeated answers to the same question are discarded, not scored.
func ScoreAnswers(exam domain.Exam, answers []domain.SubmittedAnswer) ([]domain.AnswerRecord, domain.SubmitResult) {
	idx := exam.QuestionIndex()
	inTest := make(map[string]struct{}, len(idx))
	for _, section := range exam.Test.Sections {
		for _, id := range section.QuestionIDs {
			inTest[id] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(answers))
	records := make([]domain.AnswerRecord, 0, len(answers))
	result := domain.SubmitResult{Answers: make([]domain.AnswerOutcome, 0, len(answers))}
	var correctCount, incorrectCount int

	for _, ans := range answers {
		if err := validate.Struct(ans); err != nil {
			continue
		}
		q, ok := idx[ans.QuestionID]
		if !ok {
			continue
		}
		if _, ok := inTest[q.ID]; !ok {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		selected := *ans.SelectedOption
		if selected >= len(q.Options) || !isPermutation(ans.OptionMap, len(q.Options)) {
			continue
		}
		seen[q.ID] = struct{}{}

		correct := ans.OptionMap[selected] == q.CorrectAnswerIndex
		if correct {
			correctCount++
		} else {
			incorrectCount++
		}
		records = append(records, domain.AnswerRecord{
			QuestionID:     q.ID,
			SelectedOption: selected,
			OptionMap:      append([]int(nil), ans.OptionMap...),
			IsCorrect:      correct,
		})
		result.Answers = append(result.Answers, domain.AnswerOutcome{
			QuestionID:     q.ID,
			SelectedOption: selected,
			IsCorrect:      correct,
		})
	}
	result.Score = Score(correctCount, incorrectCount)
	return records, result
}

func outcomes(records []domain.AnswerRecord) []domain.AnswerOutcome {
	out := make([]domain.AnswerOutcome, 0, len(records))
	for _, r := range records {
		out = append(out, domain.AnswerOutcome{
			QuestionID:     r.QuestionID,
			SelectedOption: r.SelectedOption,
			IsCorrect:      r.IsCorrect,
		})
	}
	return out
}
