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
	"github.com/nekogravitycat/space-reservation-backend/internal/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	reservationID = "7b0d3c9e-2f41-4c55-9d6b-3a1e8f0c2b11"
	spaceID       = "0f8e7d6c-5b4a-4392-8172-6a5b4c3d2e1f"
)

// stubService records the last call and returns canned results.
type stubService struct {
	reservation.Service

	res        *reservation.Reservation
	err        error
	lastFilter reservation.Filter
	lastActor  string
	lastStaff  bool
	lastHard   bool
	lastCreate reservation.CreateRequest
}

func (s *stubService) Create(_ context.Context, req reservation.CreateRequest) (*reservation.Reservation, error) {
	s.lastCreate = req
	return s.res, s.err
}

func (s *stubService) Confirm(_ context.Context, _ string, actorID string, isStaff bool) (*reservation.Reservation, error) {
	s.lastActor, s.lastStaff = actorID, isStaff
	return s.res, s.err
}

func (s *stubService) Cancel(_ context.Context, _ string, actorID string, isStaff bool) error {
	s.lastActor, s.lastStaff = actorID, isStaff
	return s.err
}

func (s *stubService) Update(_ context.Context, _ string, _ reservation.UpdateRequest, actorID string, isStaff bool) (*reservation.Reservation, error) {
	s.lastActor, s.lastStaff = actorID, isStaff
	return s.res, s.err
}

func (s *stubService) Delete(_ context.Context, _ string, actorID string, isStaff bool, hard bool) error {
	s.lastActor, s.lastStaff, s.lastHard = actorID, isStaff, hard
	return s.err
}

func (s *stubService) GetByID(context.Context, string) (*reservation.Reservation, error) {
	return s.res, s.err
}

func (s *stubService) List(_ context.Context, f reservation.Filter) ([]*reservation.Reservation, int, error) {
	s.lastFilter = f
	if s.res == nil {
		return nil, 0, s.err
	}
	return []*reservation.Reservation{s.res}, 1, s.err
}

func (s *stubService) Busy(context.Context, string, time.Time, time.Time) ([]reservation.Interval, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []reservation.Interval{{ReservationID: reservationID, Start: s.res.StartTime, End: s.res.EndTime}}, nil
}

type testEnv struct {
	router *gin.Engine
	svc    *stubService
	jwt    *auth.JWTManager
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	jwt := auth.NewJWTManager("test-secret", time.Hour)
	svc := &stubService{res: &reservation.Reservation{
		ID:            reservationID,
		SpaceID:       spaceID,
		OwnerID:       "user-7",
		StartTime:     time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC),
		OccupantCount: 3,
		State:         reservation.StatePending,
	}}

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(svc), auth.AuthRequired(jwt))
	return &testEnv{router: r, svc: svc, jwt: jwt}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := e.jwt.GenerateAccessToken(userID, userID+"@example.com", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestReservationHandlers(t *testing.T) {
	t.Run("Create: success uses the caller as owner", func(t *testing.T) {
		env := newTestEnv()
		payload := CreateReservationRequest{
			SpaceID:       spaceID,
			StartTime:     env.svc.res.StartTime,
			EndTime:       env.svc.res.EndTime,
			OccupantCount: 3,
		}

		w := env.do(t, http.MethodPost, "/v1/reservations", payload, "user-7", auth.RoleUser)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "user-7", env.svc.lastCreate.OwnerID)

		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, reservationID, resp.ID)
		assert.Equal(t, "pending", resp.State)
		assert.False(t, resp.Synchronized)
	})

	t.Run("Create: unauthenticated", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodPost, "/v1/reservations", CreateReservationRequest{}, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Create: invalid body", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodPost, "/v1/reservations", map[string]any{"space_id": "nope"}, "user-7", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Create: conflict lists the conflicting ids", func(t *testing.T) {
		env := newTestEnv()
		env.svc.err = &reservation.ConflictError{SpaceID: spaceID, ConflictingIDs: []string{"r-1", "r-2"}}
		payload := CreateReservationRequest{
			SpaceID: spaceID, StartTime: env.svc.res.StartTime, EndTime: env.svc.res.EndTime, OccupantCount: 1,
		}

		w := env.do(t, http.MethodPost, "/v1/reservations", payload, "user-7", "")
		require.Equal(t, http.StatusConflict, w.Code)

		var resp ConflictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"r-1", "r-2"}, resp.ConflictingReservationIDs)
	})

	t.Run("Create: validation error maps to 400", func(t *testing.T) {
		env := newTestEnv()
		env.svc.err = reservation.ErrInvalidTimeRange
		payload := CreateReservationRequest{
			SpaceID: spaceID, StartTime: env.svc.res.EndTime, EndTime: env.svc.res.StartTime, OccupantCount: 1,
		}

		w := env.do(t, http.MethodPost, "/v1/reservations", payload, "user-7", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Confirm: invalid transition names state and action", func(t *testing.T) {
		env := newTestEnv()
		env.svc.err = &reservation.InvalidTransitionError{From: reservation.StateCancelled, Action: reservation.ActionConfirm}

		w := env.do(t, http.MethodPost, "/v1/reservations/"+reservationID+"/confirm", nil, "user-7", "")
		require.Equal(t, http.StatusConflict, w.Code)

		var resp TransitionErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.State)
		assert.Equal(t, "confirm", resp.Action)
	})

	t.Run("Cancel: no content and staff flag forwarded", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodPost, "/v1/reservations/"+reservationID+"/cancel", nil, "staff-1", auth.RoleStaff)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "staff-1", env.svc.lastActor)
		assert.True(t, env.svc.lastStaff)
	})

	t.Run("Cancel: not found", func(t *testing.T) {
		env := newTestEnv()
		env.svc.err = reservation.ErrNotFound
		w := env.do(t, http.MethodPost, "/v1/reservations/"+reservationID+"/cancel", nil, "user-7", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Delete: hard flag", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodDelete, "/v1/reservations/"+reservationID+"?hard=true", nil, "admin-1", auth.RoleAdmin)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.True(t, env.svc.lastHard)
	})

	t.Run("Get: invalid id", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodGet, "/v1/reservations/not-a-uuid", nil, "user-7", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Get: other users' reservations are hidden", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodGet, "/v1/reservations/"+reservationID, nil, "user-8", "")
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = env.do(t, http.MethodGet, "/v1/reservations/"+reservationID, nil, "staff-1", auth.RoleStaff)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("List: regular users only see their own", func(t *testing.T) {
		env := newTestEnv()
		w := env.do(t, http.MethodGet, "/v1/reservations?owner_id=someone-else&state=pending", nil, "user-7", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-7", env.svc.lastFilter.OwnerID)
		assert.Equal(t, reservation.StatePending, env.svc.lastFilter.State)

		w = env.do(t, http.MethodGet, "/v1/reservations?owner_id=someone-else", nil, "staff-1", auth.RoleStaff)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "someone-else", env.svc.lastFilter.OwnerID)

		w = env.do(t, http.MethodGet, "/v1/reservations?state=archived", nil, "user-7", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Busy: returns intervals", func(t *testing.T) {
		env := newTestEnv()
		path := "/v1/reservations/busy?space_id=" + spaceID + "&from=2025-01-01T08:00:00Z&to=2025-01-01T18:00:00Z"
		w := env.do(t, http.MethodGet, path, nil, "user-7", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp BusyResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Intervals, 1)
		assert.Equal(t, reservationID, resp.Intervals[0].ReservationID)

		w = env.do(t, http.MethodGet, "/v1/reservations/busy?space_id="+spaceID, nil, "user-7", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
