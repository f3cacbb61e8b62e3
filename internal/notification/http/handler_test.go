package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/space-reservation-backend/internal/auth"
	"github.com/nekogravitycat/space-reservation-backend/internal/notification"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notificationID = "5d4c3b2a-1f0e-4d9c-8b7a-6f5e4d3c2b1a"

type stubService struct {
	notification.Service

	list       []*notification.Notification
	err        error
	lastFilter notification.Filter
	lastRead   [2]string
}

func (s *stubService) List(_ context.Context, f notification.Filter) ([]*notification.Notification, int, error) {
	s.lastFilter = f
	return s.list, len(s.list), s.err
}

func (s *stubService) MarkRead(_ context.Context, id, userID string) error {
	s.lastRead = [2]string{id, userID}
	return s.err
}

func newTestEnv() (*gin.Engine, *stubService, *auth.JWTManager) {
	gin.SetMode(gin.TestMode)
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	svc := &stubService{list: []*notification.Notification{
		{ID: notificationID, UserID: "user-7", Kind: "confirmed", Message: "Your reservation is confirmed"},
	}}

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(svc), auth.AuthRequired(jwt))
	return r, svc, jwt
}

func do(t *testing.T, r *gin.Engine, jwt *auth.JWTManager, method, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		token, err := jwt.GenerateAccessToken(userID, userID+"@example.com", auth.RoleUser)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNotificationHandlers(t *testing.T) {
	t.Run("List: scoped to the caller", func(t *testing.T) {
		r, svc, jwt := newTestEnv()
		w := do(t, r, jwt, http.MethodGet, "/v1/notifications?unread=true", "user-7")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-7", svc.lastFilter.UserID)
		assert.True(t, svc.lastFilter.UnreadOnly)

		var resp response.PageResponse[NotificationResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "confirmed", resp.Items[0].Kind)
		assert.False(t, resp.Items[0].Read)
	})

	t.Run("List: unauthenticated", func(t *testing.T) {
		r, _, jwt := newTestEnv()
		w := do(t, r, jwt, http.MethodGet, "/v1/notifications", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MarkRead: success", func(t *testing.T) {
		r, svc, jwt := newTestEnv()
		w := do(t, r, jwt, http.MethodPatch, "/v1/notifications/"+notificationID+"/read", "user-7")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, [2]string{notificationID, "user-7"}, svc.lastRead)
	})

	t.Run("MarkRead: someone else's notification", func(t *testing.T) {
		r, svc, jwt := newTestEnv()
		svc.err = notification.ErrNotFound
		w := do(t, r, jwt, http.MethodPatch, "/v1/notifications/"+notificationID+"/read", "user-8")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("MarkRead: id must be a uuid", func(t *testing.T) {
		r, _, jwt := newTestEnv()
		w := do(t, r, jwt, http.MethodPatch, "/v1/notifications/inbox/read", "user-7")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
