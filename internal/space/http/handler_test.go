package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/space-reservation-backend/internal/auth"
	"github.com/nekogravitycat/space-reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/space-reservation-backend/internal/space"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spaceID = "0f8e7d6c-5b4a-4392-8172-6a5b4c3d2e1f"

type stubService struct {
	space.Service

	sp         *space.Space
	err        error
	lastFilter space.Filter
	lastCreate space.CreateRequest
	deleted    string
}

func (s *stubService) Create(_ context.Context, req space.CreateRequest) (*space.Space, error) {
	s.lastCreate = req
	return s.sp, s.err
}

func (s *stubService) GetByID(context.Context, string) (*space.Space, error) {
	return s.sp, s.err
}

func (s *stubService) List(_ context.Context, f space.Filter) ([]*space.Space, int, error) {
	s.lastFilter = f
	return []*space.Space{s.sp}, 1, s.err
}

func (s *stubService) Delete(_ context.Context, id string) error {
	s.deleted = id
	return s.err
}

type testEnv struct {
	router *gin.Engine
	svc    *stubService
	jwt    *auth.JWTManager
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	svc := &stubService{sp: &space.Space{ID: spaceID, Name: "Room A", Capacity: 6}}

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(svc), auth.AuthRequired(jwt), auth.RequireStaff())
	return &testEnv{router: r, svc: svc, jwt: jwt}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := e.jwt.GenerateAccessToken("user-1", "user-1@example.com", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestSpaceHandlers(t *testing.T) {
	t.Run("List: filters are passed through", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodGet, "/v1/spaces?min_capacity=4&q=%20room%20&sort_by=capacity&sort_order=desc", nil, auth.RoleUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 4, env.svc.lastFilter.MinCapacity)
		assert.Equal(t, "room", env.svc.lastFilter.Keyword)
		assert.Equal(t, "DESC", env.svc.lastFilter.SortOrder)

		var resp response.PageResponse[SpaceResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "Room A", resp.Items[0].Name)
	})

	t.Run("List: unauthenticated", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodGet, "/v1/spaces", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Get: not found", func(t *testing.T) {
		env := newTestEnv()
		env.svc.sp, env.svc.err = nil, space.ErrNotFound
		w := env.do(t, http.MethodGet, "/v1/spaces/"+spaceID, nil, auth.RoleUser)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Get: id must be a uuid", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodGet, "/v1/spaces/room-a", nil, auth.RoleUser)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Create: staff only", func(t *testing.T) {
		env := newTestEnv()
		body := CreateRequest{Name: "Room A", Capacity: 6}

		w := env.do(t, http.MethodPost, "/v1/spaces", body, auth.RoleUser)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = env.do(t, http.MethodPost, "/v1/spaces", body, auth.RoleStaff)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 6, env.svc.lastCreate.Capacity)

		var resp SpaceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, spaceID, resp.ID)
	})

	t.Run("Create: capacity must be positive", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodPost, "/v1/spaces", CreateRequest{Name: "Room A"}, auth.RoleAdmin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Delete: in use", func(t *testing.T) {
		env := newTestEnv()
		env.svc.err = space.ErrInUse
		w := env.do(t, http.MethodDelete, "/v1/spaces/"+spaceID, nil, auth.RoleStaff)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Delete: success", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodDelete, "/v1/spaces/"+spaceID, nil, auth.RoleStaff)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, spaceID, env.svc.deleted)
	})
}
