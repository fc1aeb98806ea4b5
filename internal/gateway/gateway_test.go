package gateway_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/gateway"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository/sqlstore"
	"github.com/vytor/drillbot/internal/testutil"
)

type sentText struct {
	address string
	text    string
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) SendText(_ context.Context, address, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentText{address: address, text: text})
	return nil
}

func longPrompt(userID int64) models.Intent {
	intent := models.NewPromptIntent(userID, models.QuestionPrompt{
		QuestionID: 9,
		Label:      "lenses",
		Text:       strings.Repeat("A converging lens forms an image of an object placed beyond its focus. ", 4),
		Options:    [4]string{"real and inverted", "virtual and erect", "real and erect", "no image"},
	})
	intent.ID = "intent-1"
	return intent
}

func TestGateway_SendSplitsLongMessages(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	user := testutil.SeedUser(t, db, "919811111111", time.Now())
	transport := &fakeTransport{}
	g := gateway.New(sqlstore.NewUserRepository(db), 80, gateway.WithTransport(models.ChannelWebhook, transport))

	err := g.Send(context.Background(), user.ID, longPrompt(user.ID))

	require.NoError(t, err)
	require.Greater(t, len(transport.sent), 1)
	var joined []string
	for _, s := range transport.sent {
		assert.Equal(t, "919811111111", s.address)
		assert.LessOrEqual(t, utf8.RuneCountInString(s.text), 80)
		joined = append(joined, s.text)
	}
	assert.Contains(t, strings.Join(joined, "\n"), "*D)* no image")
}

func TestGateway_FallbackTransport(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	user := testutil.SeedUser(t, db, "919822222222", time.Now())
	fallback := &fakeTransport{}
	g := gateway.New(sqlstore.NewUserRepository(db), 4096, gateway.WithFallback(fallback))

	err := g.Send(context.Background(), user.ID, models.NewInfoIntent(user.ID, models.Informational{Reason: models.InfoHelp}))

	require.NoError(t, err)
	require.Len(t, fallback.sent, 1)
	assert.Contains(t, fallback.sent[0].text, "*GO* starts a drill")
}

func TestGateway_SendErrors(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	user := testutil.SeedUser(t, db, "919833333333", time.Now())
	failing := &fakeTransport{err: stderrors.New("channel down")}
	g := gateway.New(sqlstore.NewUserRepository(db), 4096, gateway.WithTransport(models.ChannelWebhook, failing))
	help := models.NewInfoIntent(user.ID, models.Informational{Reason: models.InfoHelp})

	err := g.Send(context.Background(), 4242, help)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	err = g.Send(context.Background(), user.ID, models.Intent{Kind: models.IntentHintReveal})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	err = g.Send(context.Background(), user.ID, help)
	assert.EqualError(t, err, "channel down")
}

func TestLimiter_PerUserBurst(t *testing.T) {
	l := gateway.NewLimiter(0.001, 2)

	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	assert.True(t, l.Allow(2))
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	l := gateway.NewLimiter(0.001, 1)
	require.NoError(t, l.Wait(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, 1))
}

func TestHTTPTransport_PostsJSON(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := gateway.NewHTTPTransport(srv.URL, models.ChannelWhatsApp)
	err := tr.SendText(context.Background(), "919844444444", "hello")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"channel": "whatsapp", "to": "919844444444", "text": "hello"}, got)
	assert.Equal(t, "http:whatsapp", tr.Name())
}

func TestHTTPTransport_ReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := gateway.NewHTTPTransport(srv.URL, models.ChannelWebhook).SendText(context.Background(), "x", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback status 429")
}
