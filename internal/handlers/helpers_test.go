// internal/handlers/helpers_test.go
package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/auth"
	"github.com/jason-s-yu/czar/internal/database"
	"github.com/jason-s-yu/czar/internal/game"
	"github.com/jason-s-yu/czar/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

type stubDecks struct {
	cards []models.Card
}

func (d stubDecks) FetchCardsByDeckIDs(ctx context.Context, deckIDs []uuid.UUID) ([]models.Card, error) {
	return d.cards, nil
}

func newStubDecks(deckID uuid.UUID) stubDecks {
	var cards []models.Card
	for i := 0; i < 20; i++ {
		cards = append(cards, models.Card{ID: uuid.New(), DeckID: deckID, Kind: models.CardKindBlack, Text: "Why ____?", Pick: 1})
	}
	for i := 0; i < 100; i++ {
		cards = append(cards, models.Card{ID: uuid.New(), DeckID: deckID, Kind: models.CardKindWhite, Text: "An answer."})
	}
	return stubDecks{cards: cards}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type wsFixture struct {
	srv    *httptest.Server
	gs     *GameServer
	deckID uuid.UUID
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	require.NoError(t, auth.Init())

	logger := quietLogger()
	deckID := uuid.New()
	hub := NewHub(logger)
	m := game.NewManager(game.Dependencies{
		Decks:       newStubDecks(deckID),
		Broadcaster: hub,
		Logger:      logger,
	})
	gs := &GameServer{Manager: m, Hub: hub, Logger: logger}
	srv := httptest.NewServer(GameWSHandler(gs))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return &wsFixture{srv: srv, gs: gs, deckID: deckID}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

type dialOpt func(*websocket.DialOptions)

func withCookie(token string) dialOpt {
	return func(o *websocket.DialOptions) {
		o.HTTPHeader = http.Header{"Cookie": []string{auth.CookieName + "=" + token}}
	}
}

func withoutSubprotocol() dialOpt {
	return func(o *websocket.DialOptions) { o.Subprotocols = nil }
}

func (f *wsFixture) dial(t *testing.T, opts ...dialOpt) *wsClient {
	t.Helper()
	o := &websocket.DialOptions{Subprotocols: []string{gameSubprotocol}}
	for _, opt := range opts {
		opt(o)
	}
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(f.srv.URL, "http"), o)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(typ string, payload interface{}) string {
	c.t.Helper()
	c.seq++
	id := typ + "-" + strconv.Itoa(c.seq)
	msg := map[string]interface{}{"type": typ, "requestId": id}
	if payload != nil {
		msg["payload"] = payload
	}
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	require.NoError(c.t, wsjson.Write(ctx, c.conn, msg))
	return id
}

func (c *wsClient) read() (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	var msg map[string]interface{}
	err := wsjson.Read(ctx, c.conn, &msg)
	return msg, err
}

// readUntil skips messages until pred matches.
func (c *wsClient) readUntil(pred func(map[string]interface{}) bool) map[string]interface{} {
	c.t.Helper()
	for {
		msg, err := c.read()
		require.NoError(c.t, err)
		if pred(msg) {
			return msg
		}
	}
}

// call sends a command and waits for its response.
func (c *wsClient) call(typ string, payload interface{}) map[string]interface{} {
	c.t.Helper()
	id := c.send(typ, payload)
	return c.readUntil(func(m map[string]interface{}) bool {
		return m["type"] == "response" && m["requestId"] == id
	})
}

// expectEvents reads until every listed event type was seen and returns the first of each.
func (c *wsClient) expectEvents(types ...string) map[string]map[string]interface{} {
	c.t.Helper()
	want := make(map[string]bool, len(types))
	for _, typ := range types {
		want[typ] = true
	}
	seen := make(map[string]map[string]interface{})
	for len(seen) < len(want) {
		msg, err := c.read()
		require.NoError(c.t, err, "waiting for %v, saw %v", types, keys(seen))
		typ, _ := msg["type"].(string)
		if want[typ] && seen[typ] == nil {
			seen[typ] = msg
		}
	}
	return seen
}

func keys(m map[string]map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}

func errorCode(resp map[string]interface{}) string {
	e, _ := resp["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

// useMockDB points the database package at a pgxmock pool for the test.
func useMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	prev := database.DB
	database.DB = mock
	t.Cleanup(func() {
		database.DB = prev
		mock.Close()
	})
	return mock
}
