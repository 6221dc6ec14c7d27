package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/configs"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/cart"
	"github.com/Keoroanthony/shopnow-api/internal/db/dbtest"
	"github.com/Keoroanthony/shopnow-api/internal/events"
	"github.com/Keoroanthony/shopnow-api/internal/handlers"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/server"
	"github.com/Keoroanthony/shopnow-api/internal/stats"
)

const testSecret = "test-secret-key"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	placed  []uint
	decided []uint
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, _ *models.User, o *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, o.ID)
}

func (n *recordingNotifier) CreditDecided(_ context.Context, _ *models.User, o *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decided = append(n.decided, o.ID)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.placed), len(n.decided)
}

type testEnv struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB := dbtest.Open(t)
	env := &testEnv{
		t:         t,
		db:        testDB,
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	log := zap.NewNop()
	env.router = server.NewRouter(server.Deps{
		Session: config.SessionConfig{Secret: testSecret, Name: "gosess"},
		Log:     log,
		Carts:   cart.NewService(testDB, nil, log),
		Reports: stats.NewReporter(testDB),
		Effects: &handlers.Effects{Publisher: env.publisher, Notifier: env.notifier, Log: log},
	})
	return env
}

// sessionCookie forges the cookie the login callback would have issued.
func sessionCookie(t *testing.T, userID uint) string {
	t.Helper()
	tempW := httptest.NewRecorder()
	tempC, _ := gin.CreateTestContext(tempW)
	tempC.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	sessions.Sessions("gosess", cookie.NewStore([]byte(testSecret)))(tempC)

	session := sessions.Default(tempC)
	session.Set(auth.SessionUserKey, userID)
	require.NoError(t, session.Save())
	return tempW.Header().Get("Set-Cookie")
}

// do sends body as JSON. A nil user sends no session cookie.
func (e *testEnv) do(method, path string, body any, user *models.User) *httptest.ResponseRecorder {
	e.t.Helper()
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		require.NoError(e.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Cookie", sessionCookie(e.t, user.ID))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) user(email string, role models.Role) *models.User {
	e.t.Helper()
	u := &models.User{Name: email, Email: email, Phone: "+21650000000", Role: role}
	require.NoError(e.t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) staff(email string) *models.User {
	e.t.Helper()
	u := e.user(email, models.RoleCustomer)
	require.NoError(e.t, e.db.Model(u).Update("is_staff", true).Error)
	u.IsStaff = true
	return u
}

func (e *testEnv) shop(owner *models.User, name string) *models.Shop {
	e.t.Helper()
	s := &models.Shop{OwnerID: owner.ID, Name: name, City: "Tunis", IsActive: true}
	require.NoError(e.t, e.db.Create(s).Error)
	return s
}

func (e *testEnv) product(name, price string, stock int, shop *models.Shop) *models.Product {
	e.t.Helper()
	p := &models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	if shop != nil {
		p.ShopID = &shop.ID
	}
	require.NoError(e.t, e.db.Create(p).Error)
	return p
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}
