package nudge_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/drillbot/internal/config"
	"github.com/vytor/drillbot/internal/locker"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/nudge"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/vytor/drillbot/internal/repository/sqlstore"
	"github.com/vytor/drillbot/internal/testutil"
)

var registered = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	intents []models.Intent
}

func (r *recorder) Deliver(_ context.Context, intents []models.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intents...)
}

type ScannerSuite struct {
	suite.Suite
	db      *sqlx.DB
	store   repository.Store
	sent    *recorder
	scanner *nudge.Scanner
	user    models.User
	seq     int
}

func (s *ScannerSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlstore.NewStore(s.db)
	s.sent = &recorder{}
	tiers, err := config.ParseNudgeTiers(config.DefaultNudgeTiers)
	s.Require().NoError(err)
	s.scanner = nudge.NewScanner(s.store, locker.NewMemory(), s.sent, tiers,
		nudge.WithIDGenerator(func() string {
			s.seq++
			return fmt.Sprintf("nudge-%d", s.seq)
		}),
		nudge.WithConcurrency(1),
	)
	s.user = s.seedLearner("919866666666", registered)
}

func (s *ScannerSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *ScannerSuite) seedLearner(externalID string, lastActive time.Time) models.User {
	u := testutil.SeedUser(s.T(), s.db, externalID, registered.Add(-24*time.Hour))
	s.Require().NoError(s.store.Repos().Users.TouchActivity(context.Background(), u.ID, lastActive))
	testutil.SeedMistake(s.T(), s.db, models.NewMistake(u.ID, "physics", "optics", "lenses", "", registered))
	return u
}

func (s *ScannerSuite) scan(after time.Duration) []models.Intent {
	intents, err := s.scanner.Scan(context.Background(), registered.Add(after))
	s.Require().NoError(err)
	return intents
}

func (s *ScannerSuite) TestNotYetInactive() {
	s.Empty(s.scan(23 * time.Hour))
}

func (s *ScannerSuite) TestCooldownBlocksRepeatNudge() {
	first := s.scan(25 * time.Hour)
	s.Require().Len(first, 1)
	n := first[0].Nudge
	s.Equal("gentle", n.Tier)
	s.Equal(25, n.InactiveHours)
	s.Equal(1, n.Pending)
	s.Equal("nudge-1", first[0].ID)

	s.Empty(s.scan(26 * time.Hour))

	again := s.scan(49 * time.Hour)
	s.Require().Len(again, 1)
	s.Equal("gentle", again[0].Nudge.Tier)

	last, err := s.store.Repos().Nudges.LastNudge(context.Background(), s.user.ID, "gentle")
	s.Require().NoError(err)
	s.Require().NotNil(last)
	s.True(last.SentAt.Equal(registered.Add(49 * time.Hour)))
	s.Contains(last.Message, "mistakes waiting")
}

func (s *ScannerSuite) TestHighestTierWithoutFallback() {
	s.Require().Len(s.scan(49*time.Hour), 1)

	strong := s.scan(73 * time.Hour)
	s.Require().Len(strong, 1)
	s.Equal("strong", strong[0].Nudge.Tier)

	s.Empty(s.scan(74 * time.Hour))
}

func (s *ScannerSuite) TestSkipsUsersWithoutPendingMistakes() {
	_, err := s.db.Exec(`UPDATE mistakes SET is_mastered = ? WHERE user_id = ?`, true, s.user.ID)
	s.Require().NoError(err)

	s.Empty(s.scan(30 * time.Hour))
}

func (s *ScannerSuite) TestSkipsUnsubscribedUsers() {
	s.Require().NoError(s.store.Repos().Users.SetActive(context.Background(), s.user.ID, false))

	s.Empty(s.scan(30 * time.Hour))
}

func (s *ScannerSuite) TestWritesOutboxAndDelivers() {
	other := s.seedLearner("919877777777", registered.Add(-100*time.Hour))

	intents := s.scan(2 * time.Hour)

	s.Require().Len(intents, 1)
	s.Equal(other.ID, intents[0].UserID)
	s.Equal("strong", intents[0].Nudge.Tier)
	s.Len(s.sent.intents, 1)

	pending, err := s.store.Repos().Outbox.Pending(context.Background(), registered.Add(2*time.Hour), 5, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(intents[0].ID, pending[0].ID)
}

func TestScannerSuite(t *testing.T) {
	suite.Run(t, new(ScannerSuite))
}

func TestTierFor(t *testing.T) {
	tiers, err := config.ParseNudgeTiers(config.DefaultNudgeTiers)
	assert.NoError(t, err)

	tests := []struct {
		inactive time.Duration
		want     string
		ok       bool
	}{
		{23 * time.Hour, "", false},
		{24 * time.Hour, "gentle", true},
		{71 * time.Hour, "gentle", true},
		{72 * time.Hour, "strong", true},
		{200 * time.Hour, "final", true},
	}
	for _, tt := range tests {
		tier, ok := nudge.TierFor(tiers, tt.inactive)
		assert.Equal(t, tt.ok, ok, tt.inactive)
		assert.Equal(t, tt.want, tier.Name, tt.inactive)
	}
}
