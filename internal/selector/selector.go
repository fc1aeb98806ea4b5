package selector

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

const DefaultRecentWindow = 3

// Selection is the mistake to drill next together with the question to ask.
type Selection struct {
	Mistake  models.Mistake
	Question models.Question
}

// Selector picks due mistakes and matching questions. It is cheap to build and
// is usually bound to the repositories of one transaction.
type Selector struct {
	mistakes     repository.MistakeRepository
	questions    repository.QuestionRepository
	attempts     repository.AttemptRepository
	recentWindow int
	pick         func(n int) int
}

type Option func(*Selector)

// WithRecentWindow sets how many recently drilled questions are avoided per mistake.
func WithRecentWindow(n int) Option {
	return func(s *Selector) {
		if n >= 0 {
			s.recentWindow = n
		}
	}
}

// WithPicker replaces the random choice among equally good questions.
func WithPicker(pick func(n int) int) Option {
	return func(s *Selector) {
		if pick != nil {
			s.pick = pick
		}
	}
}

func New(repos repository.Repos, opts ...Option) *Selector {
	s := &Selector{
		mistakes:     repos.Mistakes,
		questions:    repos.Questions,
		attempts:     repos.Attempts,
		recentWindow: DefaultRecentWindow,
		pick:         rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextDrillFor returns the most urgent due mistake and a question for it.
// A nil selection means nothing is due. A ContentExhausted error means the
// mistake is due but no question matches it.
func (s *Selector) NextDrillFor(ctx context.Context, userID int64, now time.Time) (*Selection, error) {
	log := logger.FromContext(ctx).WithPrefix("selector")

	due, err := s.mistakes.ListDueForUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list due mistakes: %w", err)
	}
	due = filterUnmastered(due)
	if len(due) == 0 {
		log.Debug("nothing due for user %d", userID)
		return nil, nil
	}
	SortByUrgency(due)

	m := due[0]
	q, err := s.QuestionFor(ctx, m)
	if err != nil {
		return nil, err
	}
	log.Debug("selected mistake %d question %d for user %d (%d due)", m.ID, q.ID, userID, len(due))
	return &Selection{Mistake: m, Question: *q}, nil
}

// AnyUnmastered lists the user's unmastered mistakes, most urgent first, whether due or not.
func (s *Selector) AnyUnmastered(ctx context.Context, userID int64) ([]models.Mistake, error) {
	all, err := s.mistakes.ListUnmasteredForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unmastered mistakes: %w", err)
	}
	all = filterUnmastered(all)
	SortByUrgency(all)
	return all, nil
}

// QuestionFor chooses a question for m, relaxing the match from topic to
// chapter to subject and finally dropping the difficulty band.
func (s *Selector) QuestionFor(ctx context.Context, m models.Mistake) (*models.Question, error) {
	log := logger.FromContext(ctx).WithPrefix("selector")

	var recent []int64
	if s.recentWindow > 0 && m.ID != 0 {
		ids, err := s.attempts.RecentQuestionIDs(ctx, m.ID, s.recentWindow)
		if err != nil {
			return nil, fmt.Errorf("recent questions: %w", err)
		}
		recent = ids
	}

	for i, filter := range Tiers(m) {
		candidates, err := s.find(ctx, filter, recent)
		if err != nil {
			return nil, fmt.Errorf("find questions: %w", err)
		}
		if len(candidates) == 0 {
			continue
		}
		q := candidates[s.pick(len(candidates))]
		log.Debug("mistake %d: question %d from tier %d (%d candidates)", m.ID, q.ID, i+1, len(candidates))
		return &q, nil
	}

	log.Warn("no question for mistake %d (subject=%s topic=%s)", m.ID, m.Subject, m.Topic)
	return nil, errors.NewContentExhaustedError(m.Subject, m.Topic)
}

// find applies the recent-question exclusion, dropping it when it would leave nothing.
func (s *Selector) find(ctx context.Context, filter models.QuestionFilter, recent []int64) ([]models.Question, error) {
	if len(recent) > 0 {
		filter.ExcludeIDs = recent
		out, err := s.questions.Find(ctx, filter)
		if err != nil || len(out) > 0 {
			return out, err
		}
		filter.ExcludeIDs = nil
	}
	return s.questions.Find(ctx, filter)
}

// DifficultyFor maps accuracy on a mistake to a difficulty band; nil means any.
func DifficultyFor(m models.Mistake) *models.DifficultyRange {
	acc, ok := m.Accuracy()
	switch {
	case !ok:
		return nil
	case acc < 0.5:
		return &models.DifficultyRange{Min: 1, Max: 2}
	case acc > 0.8:
		return &models.DifficultyRange{Min: 3, Max: 5}
	}
	return nil
}

// Tiers lists the question filters tried for m, most specific first.
func Tiers(m models.Mistake) []models.QuestionFilter {
	band := DifficultyFor(m)
	var tiers []models.QuestionFilter
	if m.Topic != "" {
		tiers = append(tiers, models.QuestionFilter{Subject: m.Subject, Topic: m.Topic, Difficulty: band})
	}
	if m.Chapter != "" {
		tiers = append(tiers, models.QuestionFilter{Subject: m.Subject, Chapter: m.Chapter, Difficulty: band})
	}
	if band != nil {
		tiers = append(tiers, models.QuestionFilter{Subject: m.Subject, Difficulty: band})
	}
	return append(tiers, models.QuestionFilter{Subject: m.Subject})
}

// SortByUrgency orders mistakes by earliest review, then weakest ease, then oldest.
func SortByUrgency(ms []models.Mistake) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if !a.NextReviewAt.Equal(b.NextReviewAt) {
			return a.NextReviewAt.Before(b.NextReviewAt)
		}
		if a.EaseFactor != b.EaseFactor {
			return a.EaseFactor < b.EaseFactor
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func filterUnmastered(ms []models.Mistake) []models.Mistake {
	out := ms[:0]
	for _, m := range ms {
		if !m.IsMastered {
			out = append(out, m)
		}
	}
	return out
}
