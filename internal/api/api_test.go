package api_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/drillbot/internal/api"
	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/vytor/drillbot/internal/repository/sqlstore"
	"github.com/vytor/drillbot/internal/services"
	"github.com/vytor/drillbot/internal/testutil"
	"github.com/vytor/drillbot/internal/testutil/mocks"
)

type APISuite struct {
	suite.Suite
	db      *sqlx.DB
	store   repository.Store
	conv    *mocks.MockConversationService
	queue   *mocks.MockJobQueue
	handler http.Handler
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlstore.NewStore(s.db)
	s.conv = new(mocks.MockConversationService)
	s.queue = new(mocks.MockJobQueue)

	r := s.store.Repos()
	srv := &api.Server{
		Conversation:   s.conv,
		UserService:    services.NewUserService(r.Users, r.Messages),
		MistakeService: services.NewMistakeService(r.Users, r.Mistakes),
		Queue:          s.queue,
		Store:          s.store,
		VerifyToken:    "secret",
	}
	s.handler = srv.Routes()
}

func (s *APISuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *APISuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *APISuite) errorCode(rec *httptest.ResponseRecorder) string {
	body := s.decode(rec)
	e, ok := body["error"].(map[string]any)
	require.True(s.T(), ok, rec.Body.String())
	return e["code"].(string)
}

func (s *APISuite) seedUser(externalID string) models.User {
	return testutil.SeedUser(s.T(), s.db, externalID, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func (s *APISuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("OK", rec.Body.String())
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
	s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func (s *APISuite) TestReadyReportsQuestionCount() {
	testutil.SeedQuestion(s.T(), s.db, testutil.Question("physics", "optics", "lenses", 2))

	rec := s.do(http.MethodGet, "/ready", "")
	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Equal("ready", body["status"])
	s.EqualValues(1, body["questions"])
}

func (s *APISuite) TestReadyFailsWithoutDatabase() {
	require.NoError(s.T(), s.db.Close())

	rec := s.do(http.MethodGet, "/ready", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *APISuite) TestInboundMessage() {
	received := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	out := &conversation.Outcome{
		From: models.StateIdle,
		To:   models.StateAwaitingAnswer,
		Path: []models.SessionState{models.StateIdle, models.StateAwaitingAnswer},
	}
	s.conv.On("HandleInbound", mock.Anything, mock.MatchedBy(func(m conversation.InboundMessage) bool {
		return m.UserID > 0 && m.Text == "go" && m.MessageID == "m-1" && m.ReceivedAt.Equal(received)
	})).Return(out, nil).Once()

	rec := s.do(http.MethodPost, "/webhook/messages",
		`{"external_id":"u-1","name":"Asha","text":"go","message_id":"m-1","received_at":"2026-03-02T10:00:00Z"}`)

	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
	body := s.decode(rec)
	user := body["user"].(map[string]any)
	s.Equal(models.ChannelWebhook, user["channel"])
	s.Equal("Asha", user["name"])
	outcome := body["outcome"].(map[string]any)
	s.Equal(string(models.StateAwaitingAnswer), outcome["to"])
	s.conv.AssertExpectations(s.T())
}

func (s *APISuite) TestInboundMessageRejectsMissingID() {
	rec := s.do(http.MethodPost, "/webhook/messages", `{"external_id":"u-1","text":"go"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(errors.ErrCodeValidation, s.errorCode(rec))

	rec = s.do(http.MethodPost, "/webhook/messages", `{not json`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(errors.ErrCodeBadRequest, s.errorCode(rec))
}

func (s *APISuite) TestInboundMessageRecoveredSessionIsOK() {
	out := &conversation.Outcome{From: models.StateAwaitingAnswer, To: models.StateIdle}
	s.conv.On("HandleInbound", mock.Anything, mock.Anything).
		Return(out, errors.NewNotFoundError("question", 9)).Once()

	rec := s.do(http.MethodPost, "/webhook/messages", `{"external_id":"u-2","text":"A","message_id":"m-2"}`)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APISuite) TestInboundMessageStorageFailure() {
	s.conv.On("HandleInbound", mock.Anything, mock.Anything).
		Return(nil, errors.Storage("handle inbound message", stderrors.New("database is locked"))).Once()

	rec := s.do(http.MethodPost, "/webhook/messages", `{"external_id":"u-3","text":"A","message_id":"m-3"}`)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal(errors.ErrCodeStorage, s.errorCode(rec))
}

func (s *APISuite) TestPanicIsRecovered() {
	s.conv.On("HandleInbound", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).Once()

	rec := s.do(http.MethodPost, "/webhook/messages", `{"external_id":"u-4","text":"A","message_id":"m-4"}`)
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(errors.ErrCodeInternal, s.errorCode(rec))
}

func (s *APISuite) TestGupshupVerify() {
	rec := s.do(http.MethodGet, "/webhook/gupshup?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=1234", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("1234", rec.Body.String())

	rec = s.do(http.MethodGet, "/webhook/gupshup?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1234", "")
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *APISuite) TestGupshupMessageIsQueued() {
	s.queue.On("EnqueueInbound", mock.MatchedBy(func(m conversation.InboundMessage) bool {
		return m.MessageID == "wa:gs-77" && m.Text == "B" &&
			m.ReceivedAt.Equal(time.UnixMilli(1772445600000).UTC())
	})).Return(nil).Once()

	rec := s.do(http.MethodPost, "/webhook/gupshup", `{
		"app": "drillbot", "timestamp": 1772445600000, "type": "message",
		"payload": {"id": "gs-77", "source": "+91 98765 43210", "type": "text",
			"payload": {"text": " B "}, "sender": {"phone": "919876543210", "name": "Ravi"}}
	}`)

	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("queued", s.decode(rec)["status"])
	s.queue.AssertExpectations(s.T())

	user, err := s.store.Repos().Users.GetByExternal(context.Background(), models.ChannelWhatsApp, "919876543210")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), user)
	s.Equal("Ravi", user.Name)
}

func (s *APISuite) TestGupshupNonMessageEventsAreIgnored() {
	rec := s.do(http.MethodPost, "/webhook/gupshup", `{"type":"message-event","payload":{"id":"x","type":"delivered"}}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ignored", s.decode(rec)["status"])
	s.queue.AssertNotCalled(s.T(), "EnqueueInbound", mock.Anything)
}

func (s *APISuite) TestMistakes() {
	u := s.seedUser("m-user")
	path := "/api/users/" + itoa(u.ID) + "/mistakes"

	rec := s.do(http.MethodPost, path, `{"subject":"physics","chapter":"optics","topic":"lenses","description":"sign convention"}`)
	s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("lenses", s.decode(rec)["topic"])

	rec = s.do(http.MethodGet, path, "")
	s.Equal(http.StatusOK, rec.Code)
	body := s.decode(rec)
	s.Len(body["mistakes"], 1)
	s.EqualValues(1, body["due"])

	rec = s.do(http.MethodPost, path, `{"topic":"lenses"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestUserLookup() {
	u := s.seedUser("lookup")

	rec := s.do(http.MethodGet, "/api/users/"+itoa(u.ID), "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("lookup", s.decode(rec)["external_id"])

	rec = s.do(http.MethodGet, "/api/users/999", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(errors.ErrCodeNotFound, s.errorCode(rec))

	rec = s.do(http.MethodGet, "/api/users/abc", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestRegisterAndDeactivate() {
	rec := s.do(http.MethodPost, "/api/users", `{"channel":"whatsapp","external_id":"98765 43210","name":"Meera"}`)
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
	body := s.decode(rec)
	s.Equal("919876543210", body["external_id"])
	id := int64(body["id"].(float64))

	rec = s.do(http.MethodPut, "/api/users/"+itoa(id)+"/active", `{"active":false}`)
	s.Equal(http.StatusOK, rec.Code)

	user, err := s.store.Repos().Users.Get(context.Background(), id)
	require.NoError(s.T(), err)
	s.False(user.IsActive)
}

func (s *APISuite) TestMessageHistory() {
	u := s.seedUser("history")
	msgID := "m-9"
	_, err := s.store.Repos().Messages.AppendInbound(context.Background(), models.MessageLogEntry{
		UserID:            u.ID,
		Direction:         models.DirectionInbound,
		MessageType:       "answer",
		Body:              "B",
		ExternalMessageID: &msgID,
		CreatedAt:         time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(s.T(), err)

	rec := s.do(http.MethodGet, "/api/users/"+itoa(u.ID)+"/messages?limit=10", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Len(s.decode(rec)["messages"], 1)

	rec = s.do(http.MethodGet, "/api/users/"+itoa(u.ID)+"/messages?limit=ten", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestStartDrillAndCancel() {
	s.conv.On("StartDrill", mock.Anything, int64(4), conversation.StartOptions{
		Trigger: conversation.TriggerAPI,
		Force:   true,
	}).Return(&conversation.Outcome{UserID: 4, To: models.StateAwaitingAnswer}, nil).Once()
	s.conv.On("Cancel", mock.Anything, int64(4), "admin").
		Return(&conversation.Outcome{UserID: 4, To: models.StateIdle}, nil).Once()

	rec := s.do(http.MethodPost, "/api/users/4/drill?force=true", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(string(models.StateAwaitingAnswer), s.decode(rec)["to"])

	rec = s.do(http.MethodPost, "/api/users/4/cancel?reason=admin", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(string(models.StateIdle), s.decode(rec)["to"])

	rec = s.do(http.MethodPost, "/api/users/4/drill?force=maybe", "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.conv.AssertExpectations(s.T())
}

func (s *APISuite) TestSession() {
	s.conv.On("Session", mock.Anything, int64(4)).Return(&models.ConversationState{
		UserID: 4, State: models.StateIdle, Context: models.IdleContext{},
	}, nil).Once()
	s.conv.On("Session", mock.Anything, int64(5)).Return(nil, errors.NewNotFoundError("user", 5)).Once()

	rec := s.do(http.MethodGet, "/api/users/4/session", "")
	s.Equal(http.StatusOK, rec.Code)
	s.True(strings.Contains(rec.Body.String(), `"state":"IDLE"`), rec.Body.String())

	rec = s.do(http.MethodGet, "/api/users/5/session", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestScansAreQueued() {
	s.queue.On("EnqueueDueScan").Return(nil).Once()
	s.queue.On("EnqueueNudgeScan").Return(stderrors.New("queue is full")).Once()
	s.queue.On("EnqueueOutboxFlush").Return(nil).Once()

	rec := s.do(http.MethodPost, "/api/scans/due", "")
	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal("due_scan", s.decode(rec)["job"])

	rec = s.do(http.MethodPost, "/api/scans/nudge", "")
	s.Equal(http.StatusInternalServerError, rec.Code)

	rec = s.do(http.MethodPost, "/api/outbox/flush", "")
	s.Equal(http.StatusAccepted, rec.Code)
	s.queue.AssertExpectations(s.T())
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
