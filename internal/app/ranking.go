package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/domain"
)

// RankingService aggregates completed attempts into a leaderboard.
type RankingService struct {
	exams      ExamLoader
	attempts   AttemptRepository
	candidates CandidateRepository
	sessions   SessionRepository
	queue      ScorecardQueue
	hub        *LeaderboardHub
	now        func() time.Time
}

func NewRankingService(exams ExamLoader, attempts AttemptRepository, candidates CandidateRepository, sessions SessionRepository, queue ScorecardQueue, hub *LeaderboardHub) *RankingService {
	return &RankingService{
		exams:      exams,
		attempts:   attempts,
		candidates: candidates,
		sessions:   sessions,
		queue:      queue,
		hub:        hub,
		now:        time.Now,
	}
}

// Rank builds the leaderboard of a test. Instructors may only rank their own tests.
func (s *RankingService) Rank(ctx context.Context, who domain.Identity, testID string) (domain.Ranking, error) {
	exam, err := s.exams.LoadExam(ctx, testID)
	if err != nil {
		return domain.Ranking{}, err
	}
	if err := authorizeOwner(who, exam.Test); err != nil {
		return domain.Ranking{}, err
	}
	return s.rank(ctx, exam.Test)
}

func (s *RankingService) rank(ctx context.Context, test domain.Test) (domain.Ranking, error) {
	session, err := s.sessions.GetSession(ctx, test.SessionID)
	if err != nil {
		return domain.Ranking{}, fmt.Errorf("load session: %w", err)
	}
	attempts, err := s.attempts.ListCompleted(ctx, test.ID)
	if err != nil {
		return domain.Ranking{}, fmt.Errorf("list attempts: %w", err)
	}

	uids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		uids = append(uids, a.CandidateID)
	}
	profiles, err := s.candidates.GetCandidates(ctx, uids)
	if err != nil {
		return domain.Ranking{}, fmt.Errorf("load candidates: %w", err)
	}

	entries := make([]domain.RankedEntry, 0, len(attempts))
	for _, a := range attempts {
		if a.CompletedAt == nil {
			continue
		}
		c, ok := profiles[a.CandidateID]
		if !ok {
			log.Warn().Str("candidate", a.CandidateID).Str("test", test.ID).Msg("ranked attempt without candidate profile")
			continue
		}
		entries = append(entries, domain.RankedEntry{
			UID:         c.UID,
			Name:        c.Name,
			FatherName:  c.FatherName,
			MotherName:  c.MotherName,
			PhoneNumber: c.PhoneNumber,
			Score:       a.Score,
			CompletedAt: *a.CompletedAt,
		})
	}
	return domain.Ranking{Test: test, Session: session, Entries: RankEntries(entries)}, nil
}

// RankEntries orders by score desc then completion asc and assigns standard
// competition ranks: equal (score, completion) pairs share a rank and the next
// distinct pair resumes at its 1-based position.
func RankEntries(entries []domain.RankedEntry) []domain.RankedEntry {
	out := append([]domain.RankedEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if si, sj := scoreThirds(out[i].Score), scoreThirds(out[j].Score); si != sj {
			return si > sj
		}
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].UID < out[j].UID
	})
	for i := range out {
		if i > 0 && scoreThirds(out[i].Score) == scoreThirds(out[i-1].Score) && out[i].CompletedAt.Equal(out[i-1].CompletedAt) {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

// ScorecardJobFor converts a ranking into the artifact pipeline message.
func ScorecardJobFor(r domain.Ranking) domain.ScorecardJob {
	rows := make([]domain.ScorecardRow, 0, len(r.Entries))
	for _, e := range r.Entries {
		rows = append(rows, domain.ScorecardRow{
			UID:        e.UID,
			Name:       e.Name,
			Rank:       e.Rank,
			Score:      e.Score,
			FatherName: e.FatherName,
			MotherName: e.MotherName,
		})
	}
	return domain.ScorecardJob{
		Year:       r.Session.Year,
		Stream:     r.Test.Stream,
		CommonName: r.Session.CommonName,
		Rows:       rows,
	}
}

// PublishScorecards enqueues one job for the ranking export.
func (s *RankingService) PublishScorecards(ctx context.Context, r domain.Ranking) error {
	if len(r.Entries) == 0 {
		return nil
	}
	if err := s.queue.Enqueue(ctx, ScorecardJobFor(r)); err != nil {
		return fmt.Errorf("enqueue scorecard job: %w", err)
	}
	log.Info().Str("test", r.Test.ID).Int("rows", len(r.Entries)).Msg("scorecard job enqueued")
	return nil
}

// Subscribe attaches to the live leaderboard of a test after an ownership check.
func (s *RankingService) Subscribe(ctx context.Context, who domain.Identity, testID string) (<-chan domain.Leaderboard, func(), error) {
	ranking, err := s.Rank(ctx, who, testID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(testID, s.snapshot(ranking))
	return ch, cancel, nil
}

// AttemptCompleted refreshes the live leaderboard when anyone is watching.
func (s *RankingService) AttemptCompleted(ctx context.Context, testID string) {
	if s.hub == nil || !s.hub.Watched(testID) {
		return
	}
	exam, err := s.exams.LoadExam(ctx, testID)
	if err != nil {
		log.Error().Err(err).Str("test", testID).Msg("leaderboard refresh: load exam")
		return
	}
	ranking, err := s.rank(ctx, exam.Test)
	if err != nil {
		log.Error().Err(err).Str("test", testID).Msg("leaderboard refresh: rank")
		return
	}
	s.hub.Publish(testID, s.snapshot(ranking))
}

func (s *RankingService) snapshot(r domain.Ranking) domain.Leaderboard {
	return domain.Leaderboard{TestID: r.Test.ID, Entries: r.Entries, UpdatedAt: s.now()}
}

func authorizeOwner(who domain.Identity, test domain.Test) error {
	switch who.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleInstructor:
		if test.InstructorID == who.UID {
			return nil
		}
	}
	return domain.ErrForbidden
}
