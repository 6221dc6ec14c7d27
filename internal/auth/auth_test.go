package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/db/dbtest"
	"github.com/Keoroanthony/shopnow-api/internal/models"
)

const testSecret = "test-secret-key"

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

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("gosess", cookie.NewStore([]byte(testSecret))))
	r.GET("/auth/login", auth.Login)
	r.POST("/auth/logout", auth.Logout)

	api := r.Group("/api", auth.RequireAuth())
	api.GET("/me", func(c *gin.Context) { c.JSON(http.StatusOK, auth.CurrentUser(c)) })
	api.GET("/admin", auth.RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRequireAuth(t *testing.T) {
	testDB := dbtest.Open(t)
	router := setupRouter()

	user := &models.User{Name: "Amal", Email: "amal@example.com"}
	require.NoError(t, testDB.Create(user).Error)
	staff := &models.User{Name: "Sami", Email: "sami@example.com", IsStaff: true}
	require.NoError(t, testDB.Create(staff).Error)

	do := func(path, cookie string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Rejects requests without a session", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("/api/me", "").Code)
	})

	t.Run("Rejects sessions of deleted users", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("/api/me", sessionCookie(t, 9999)).Code)
	})

	t.Run("Loads the session user", func(t *testing.T) {
		w := do("/api/me", sessionCookie(t, user.ID))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"email":"amal@example.com"`)
	})

	t.Run("Staff guard", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do("/api/admin", sessionCookie(t, user.ID)).Code)
		assert.Equal(t, http.StatusNoContent, do("/api/admin", sessionCookie(t, staff.ID)).Code)
	})

	t.Run("Login is unavailable without an issuer", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, do("/auth/login", "").Code)
	})
}

func TestUpsertUser(t *testing.T) {
	testDB := dbtest.Open(t)

	claims := auth.Claims{Sub: "sub-1", Name: "Amal", Email: "amal@example.com", Phone: "+21620000000"}
	created, err := auth.UpsertUser(testDB, claims)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, created.Role)

	again, err := auth.UpsertUser(testDB, claims)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	existing := &models.User{Name: "Sami", Email: "sami@example.com", Role: models.RoleShopOwner}
	require.NoError(t, testDB.Create(existing).Error)
	linked, err := auth.UpsertUser(testDB, auth.Claims{Sub: "sub-2", Email: "sami@example.com"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.ID)
	assert.Equal(t, models.RoleShopOwner, linked.Role)

	var stored models.User
	require.NoError(t, testDB.First(&stored, existing.ID).Error)
	require.NotNil(t, stored.OIDCID)
	assert.Equal(t, "sub-2", *stored.OIDCID)
}
