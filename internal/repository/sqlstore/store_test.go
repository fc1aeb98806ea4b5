package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/vytor/drillbot/internal/repository/sqlstore"
	"github.com/vytor/drillbot/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type StoreSuite struct {
	suite.Suite
	db    *sqlx.DB
	store repository.Store
	repos repository.Repos
	user  models.User
}

func (s *StoreSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlstore.NewStore(s.db)
	s.repos = s.store.Repos()
	s.user = testutil.SeedUser(s.T(), s.db, "919800000001", t0.Add(-48*time.Hour))
}

func (s *StoreSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *StoreSuite) TestUserGetOrCreateIsIdempotent() {
	ctx := context.Background()

	u1, err := s.repos.Users.GetOrCreate(ctx, models.ChannelTelegram, "42", "Asha", t0)
	s.Require().NoError(err)
	u2, err := s.repos.Users.GetOrCreate(ctx, models.ChannelTelegram, "42", "Renamed", t0.Add(time.Hour))
	s.Require().NoError(err)

	s.Equal(u1.ID, u2.ID)
	s.Equal("Asha", u2.Name)
	s.True(u2.IsActive)
	s.Nil(u2.LastActiveAt)
}

func (s *StoreSuite) TestUserActivityAndInactiveListing() {
	ctx := context.Background()
	other := testutil.SeedUser(s.T(), s.db, "919800000002", t0.Add(-48*time.Hour))

	s.Require().NoError(s.repos.Users.TouchActivity(ctx, other.ID, t0))

	inactive, err := s.repos.Users.ListInactiveSince(ctx, t0.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(inactive, 1)
	s.Equal(s.user.ID, inactive[0].ID)

	s.Require().NoError(s.repos.Users.SetActive(ctx, s.user.ID, false))
	inactive, err = s.repos.Users.ListInactiveSince(ctx, t0.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Empty(inactive)

	got, err := s.repos.Users.Get(ctx, other.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.LastActiveAt)
	s.True(got.LastActiveAt.Equal(t0))

	missing, err := s.repos.Users.Get(ctx, 9999)
	s.NoError(err)
	s.Nil(missing)
}

func (s *StoreSuite) TestDueMistakesOrdering() {
	ctx := context.Background()
	mk := func(topic string, due time.Time, ease float64) models.Mistake {
		m := models.NewMistake(s.user.ID, "physics", "optics", topic, "mixed up "+topic, t0.Add(-72*time.Hour))
		m.NextReviewAt = due
		m.EaseFactor = ease
		return testutil.SeedMistake(s.T(), s.db, m)
	}
	later := mk("lenses", t0.Add(-time.Hour), 2.5)
	hardest := mk("mirrors", t0.Add(-2*time.Hour), 1.5)
	easier := mk("prisms", t0.Add(-2*time.Hour), 2.2)
	mk("future", t0.Add(time.Hour), 1.3)
	mastered := models.NewMistake(s.user.ID, "physics", "optics", "done", "", t0.Add(-72*time.Hour))
	mastered.IsMastered = true
	mastered.NextReviewAt = t0.Add(-10 * time.Hour)
	testutil.SeedMistake(s.T(), s.db, mastered)

	due, err := s.repos.Mistakes.ListDueForUser(ctx, s.user.ID, t0)
	s.Require().NoError(err)
	s.Require().Len(due, 3)
	s.Equal([]int64{hardest.ID, easier.ID, later.ID}, []int64{due[0].ID, due[1].ID, due[2].ID})

	n, err := s.repos.Mistakes.CountDueForUser(ctx, s.user.ID, t0)
	s.Require().NoError(err)
	s.Equal(3, n)

	unmastered, err := s.repos.Mistakes.ListUnmasteredForUser(ctx, s.user.ID)
	s.Require().NoError(err)
	s.Len(unmastered, 4)

	users, err := s.repos.Mistakes.UsersWithDue(ctx, t0)
	s.Require().NoError(err)
	s.Equal([]int64{s.user.ID}, users)
}

func (s *StoreSuite) TestMistakeUpdateRoundTrip() {
	ctx := context.Background()
	m := testutil.SeedMistake(s.T(), s.db, models.NewMistake(s.user.ID, "chemistry", "", "moles", "", t0))

	drilled := t0.Add(time.Minute)
	m.EaseFactor = 2.6
	m.IntervalDays = 6
	m.Repetitions = 2
	m.TimesDrilled = 2
	m.TimesCorrect = 2
	m.NextReviewAt = drilled.AddDate(0, 0, 6)
	m.LastDrilledAt = &drilled
	s.Require().NoError(s.repos.Mistakes.Update(ctx, m))

	got, err := s.repos.Mistakes.Get(ctx, m.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.InDelta(2.6, got.EaseFactor, 1e-9)
	s.Equal(6, got.IntervalDays)
	s.True(got.NextReviewAt.Equal(m.NextReviewAt))
	s.Require().NotNil(got.LastDrilledAt)
	s.True(got.LastDrilledAt.Equal(drilled))
	s.Nil(got.MasteredAt)

	m.ID = 4242
	s.Error(s.repos.Mistakes.Update(ctx, m))
}

func (s *StoreSuite) TestQuestionFindFilters() {
	ctx := context.Background()
	easy := testutil.SeedQuestion(s.T(), s.db, testutil.Question("Physics", "Optics", "Lenses", 1))
	hard := testutil.SeedQuestion(s.T(), s.db, testutil.Question("Physics", "Optics", "Lenses", 4))
	mirror := testutil.SeedQuestion(s.T(), s.db, testutil.Question("Physics", "Optics", "Mirrors", 2))
	testutil.SeedQuestion(s.T(), s.db, testutil.Question("Chemistry", "Moles", "Avogadro", 2))

	byTopic, err := s.repos.Questions.Find(ctx, models.QuestionFilter{Subject: "physics", Topic: "lenses"})
	s.Require().NoError(err)
	s.Len(byTopic, 2)

	easyOnly, err := s.repos.Questions.Find(ctx, models.QuestionFilter{
		Subject:    "Physics",
		Topic:      "Lenses",
		Difficulty: &models.DifficultyRange{Min: 1, Max: 2},
	})
	s.Require().NoError(err)
	s.Require().Len(easyOnly, 1)
	s.Equal(easy.ID, easyOnly[0].ID)

	byChapter, err := s.repos.Questions.Find(ctx, models.QuestionFilter{
		Subject:    "Physics",
		Chapter:    "optics",
		ExcludeIDs: []int64{easy.ID, hard.ID},
	})
	s.Require().NoError(err)
	s.Require().Len(byChapter, 1)
	s.Equal(mirror.ID, byChapter[0].ID)

	count, err := s.repos.Questions.Count(ctx)
	s.Require().NoError(err)
	s.Equal(4, count)

	got, err := s.repos.Questions.Get(ctx, hard.ID)
	s.Require().NoError(err)
	s.Equal([]string{"Recall the definition.", "Eliminate the extremes."}, got.Hints())
}

func (s *StoreSuite) TestAttemptAppendDeduplicatesByMessageID() {
	ctx := context.Background()
	m := testutil.SeedMistake(s.T(), s.db, models.NewMistake(s.user.ID, "physics", "", "lenses", "", t0))
	q1 := testutil.SeedQuestion(s.T(), s.db, testutil.Question("physics", "", "lenses", 2))
	q2 := testutil.SeedQuestion(s.T(), s.db, testutil.Question("physics", "", "lenses", 3))

	attempt := models.DrillAttempt{
		UserID: s.user.ID, MistakeID: m.ID, QuestionID: q1.ID, MessageID: "wa:1",
		SubmittedAnswer: "A", CorrectAnswer: "B", CreatedAt: t0,
	}
	_, err := s.repos.Attempts.Append(ctx, attempt)
	s.Require().NoError(err)
	_, err = s.repos.Attempts.Append(ctx, attempt)
	s.ErrorIs(err, repository.ErrDuplicate)

	attempt.MessageID = "wa:2"
	attempt.QuestionID = q2.ID
	attempt.CreatedAt = t0.Add(time.Minute)
	_, err = s.repos.Attempts.Append(ctx, attempt)
	s.Require().NoError(err)

	recent, err := s.repos.Attempts.RecentQuestionIDs(ctx, m.ID, 3)
	s.Require().NoError(err)
	s.Equal([]int64{q2.ID, q1.ID}, recent)

	all, err := s.repos.Attempts.ListForMistake(ctx, m.ID)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *StoreSuite) TestConversationStateOptimisticUpdate() {
	ctx := context.Background()
	m := testutil.SeedMistake(s.T(), s.db, models.NewMistake(s.user.ID, "physics", "", "lenses", "", t0))
	q := testutil.SeedQuestion(s.T(), s.db, testutil.Question("physics", "", "lenses", 2))

	st, err := s.repos.States.GetOrCreate(ctx, s.user.ID, t0)
	s.Require().NoError(err)
	s.Equal(models.StateIdle, st.State)
	s.Equal(0, st.Version)

	stale := *st
	st.Begin(m.ID, q.ID, t0)
	st.RevealHint("Recall the definition.", t0.Add(time.Minute))
	s.Require().NoError(s.repos.States.Update(ctx, st))
	s.Equal(1, st.Version)

	stale.Begin(m.ID, q.ID, t0)
	s.ErrorIs(s.repos.States.Update(ctx, &stale), repository.ErrStaleState)

	again, err := s.repos.States.GetOrCreate(ctx, s.user.ID, t0.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(models.StateHintGiven, again.State)
	s.Equal(1, again.HintsGiven)
	s.Equal([]string{"Recall the definition."}, again.RevealedHints())
	s.True(again.PromptedAt().Equal(t0))

	staleUsers, err := s.repos.States.ListStale(ctx, t0.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal([]int64{s.user.ID}, staleUsers)
}

func (s *StoreSuite) TestConversationStateRejectsInvalidState() {
	ctx := context.Background()
	st, err := s.repos.States.GetOrCreate(ctx, s.user.ID, t0)
	s.Require().NoError(err)

	st.State = models.StateAwaitingAnswer
	s.Error(s.repos.States.Update(ctx, st))
}

func (s *StoreSuite) TestMessageLogDeduplicatesInbound() {
	ctx := context.Background()
	ext := "tg:1:7"
	entry := models.MessageLogEntry{UserID: s.user.ID, MessageType: "text", Body: "A", ExternalMessageID: &ext, CreatedAt: t0}

	_, err := s.repos.Messages.AppendInbound(ctx, entry)
	s.Require().NoError(err)
	_, err = s.repos.Messages.AppendInbound(ctx, entry)
	s.ErrorIs(err, repository.ErrDuplicate)

	for i := 0; i < 2; i++ {
		_, err = s.repos.Messages.AppendOutbound(ctx, models.MessageLogEntry{
			UserID: s.user.ID, MessageType: "informational", Body: "info help", CreatedAt: t0.Add(time.Duration(i+1) * time.Second),
		})
		s.Require().NoError(err)
	}

	msgs, err := s.repos.Messages.ListForUser(ctx, s.user.ID, 10)
	s.Require().NoError(err)
	s.Require().Len(msgs, 3)
	s.Equal(models.DirectionOutbound, msgs[0].Direction)
	s.Equal(models.DirectionInbound, msgs[2].Direction)
}

func (s *StoreSuite) TestNudgeLog() {
	ctx := context.Background()

	last, err := s.repos.Nudges.LastNudge(ctx, s.user.ID, "gentle")
	s.Require().NoError(err)
	s.Nil(last)

	for _, at := range []time.Time{t0, t0.Add(25 * time.Hour)} {
		_, err = s.repos.Nudges.Append(ctx, models.NudgeLogEntry{UserID: s.user.ID, Tier: "gentle", Message: "nudge gentle", SentAt: at})
		s.Require().NoError(err)
	}

	last, err = s.repos.Nudges.LastNudge(ctx, s.user.ID, "gentle")
	s.Require().NoError(err)
	s.Require().NotNil(last)
	s.True(last.SentAt.Equal(t0.Add(25 * time.Hour)))

	none, err := s.repos.Nudges.LastNudge(ctx, s.user.ID, "strong")
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *StoreSuite) TestOutboxLifecycle() {
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		s.Require().NoError(s.repos.Outbox.Enqueue(ctx, models.OutboxEntry{
			ID: id, UserID: s.user.ID, Kind: string(models.IntentInformational), Payload: "{}", CreatedAt: t0,
		}))
	}

	pending, err := s.repos.Outbox.Pending(ctx, t0, 3, 10)
	s.Require().NoError(err)
	s.Len(pending, 2)

	s.Require().NoError(s.repos.Outbox.MarkDelivered(ctx, "a", t0.Add(time.Second)))
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.repos.Outbox.MarkFailed(ctx, "b", "transport down"))
	}

	pending, err = s.repos.Outbox.Pending(ctx, t0.Add(time.Hour), 3, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	pending, err = s.repos.Outbox.Pending(ctx, t0.Add(time.Hour), 5, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("b", pending[0].ID)
	s.Equal(3, pending[0].Attempts)
	s.Equal("transport down", pending[0].LastError)

	s.Error(s.repos.Outbox.MarkDelivered(ctx, "missing", t0))
}

func (s *StoreSuite) TestWithinTxRollsBack() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := r.Mistakes.Insert(ctx, models.NewMistake(s.user.ID, "physics", "", "lenses", "", t0)); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	unmastered, err := s.repos.Mistakes.ListUnmasteredForUser(ctx, s.user.ID)
	s.Require().NoError(err)
	s.Empty(unmastered)
	s.NoError(s.store.Ping(ctx))
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}
