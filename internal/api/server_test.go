package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"flexiseat/internal/config"
	"flexiseat/internal/database"
	"flexiseat/internal/models"
	"flexiseat/internal/repository"
	"flexiseat/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler   http.Handler
	db        *database.DB
	directory *service.DirectoryService
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(t.TempDir()+"/test.db", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetDesks([]models.Desk{
		{ID: "A-1", Zone: "Creative Hub", Level: 3},
		{ID: "A-2", Zone: "Creative Hub", Level: 3},
	})

	sessions := repository.NewMemorySessionRepository()
	auth := service.NewAuthService(db, sessions, 3600, &logger)
	bookings := service.NewBookingService(db, nil, nil, &logger)
	directory := service.NewDirectoryService(db, nil, models.DefaultSuperAdminEmail, &logger)
	require.NoError(t, directory.EnsureSuperAdmin(context.Background(), ""))

	srv := NewHTTPServer(config.ServerConfig{}, db, auth, bookings, directory, &logger)
	return &testServer{handler: srv.Handler(), db: db, directory: directory}
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := ts.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoginAndMe(t *testing.T) {
	ts := setupServer(t)

	token := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	rec := ts.request(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[models.User](t, rec)
	assert.Equal(t, models.RoleAdmin, me.Role)
	// The hash never leaves the server
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLogin_Invalid(t *testing.T) {
	ts := setupServer(t)

	rec := ts.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": models.DefaultSuperAdminEmail, "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "ghost@office.com", "password": models.DefaultPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnauthorized(t *testing.T) {
	ts := setupServer(t)

	rec := ts.request(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/users", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	rec := ts.request(t, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserCRUDOverHTTP(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	// Create
	rec := ts.request(t, http.MethodPost, "/api/users", token, map[string]string{
		"name": "Sam Park", "email": "sam@office.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.User](t, rec)
	assert.Equal(t, models.RoleMember, created.Role)

	// Duplicate conflicts
	rec = ts.request(t, http.MethodPost, "/api/users", token, map[string]string{
		"name": "Dup", "email": "sam@office.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Get
	rec = ts.request(t, http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Update
	rec = ts.request(t, http.MethodPut, fmt.Sprintf("/api/users/%d", created.ID), token, map[string]string{
		"name": "Sam Lee",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[models.User](t, rec)
	assert.Equal(t, "Sam Lee", updated.Name)

	// Delete
	rec = ts.request(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", created.ID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.request(t, http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleAndTeamOverHTTP(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	rec := ts.request(t, http.MethodPost, "/api/users", token, map[string]string{
		"name": "Lead", "email": "lead@office.com", "role": models.RoleTeamLead,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	lead := decodeBody[models.User](t, rec)

	rec = ts.request(t, http.MethodPost, "/api/users", token, map[string]string{
		"name": "Member", "email": "member@office.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	member := decodeBody[models.User](t, rec)

	// Assign team
	rec = ts.request(t, http.MethodPut, fmt.Sprintf("/api/users/%d/team", lead.ID), token, map[string]any{
		"memberIds": []int64{member.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	team := decodeBody[map[string][]models.User](t, rec)
	require.Len(t, team["members"], 1)

	// Demoting the lead now conflicts
	rec = ts.request(t, http.MethodPut, fmt.Sprintf("/api/users/%d/role", lead.ID), token, map[string]string{
		"role": models.RoleMember,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Super admin role is untouchable
	rec = ts.request(t, http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody[map[string][]models.User](t, rec)
	var adminID int64
	for _, u := range users["users"] {
		if u.Email == models.DefaultSuperAdminEmail {
			adminID = u.ID
		}
	}
	rec = ts.request(t, http.MethodPut, fmt.Sprintf("/api/users/%d/role", adminID), token, map[string]string{
		"role": models.RoleMember,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBookingWorkflowOverHTTP(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	rec := ts.request(t, http.MethodPost, "/api/users", token, map[string]string{
		"name": "Member", "email": "member@office.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	member := decodeBody[models.User](t, rec)

	// Bulk create: 2 desks x 2 dates
	rec = ts.request(t, http.MethodPost, "/api/bookings", token, map[string]any{
		"assignments": map[string]int64{"A-1": member.ID, "A-2": member.ID},
		"dates":       []string{"2026-09-01", "2026-09-02"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string][]models.Booking](t, rec)
	require.Len(t, created["bookings"], 4)

	// Bad date format
	rec = ts.request(t, http.MethodPost, "/api/bookings", token, map[string]any{
		"assignments": map[string]int64{"A-1": member.ID}, "dates": []string{"01.09.2026"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty dates fail validation
	rec = ts.request(t, http.MethodPost, "/api/bookings", token, map[string]any{
		"assignments": map[string]int64{"A-1": member.ID}, "dates": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var accepted models.Booking
	for _, b := range created["bookings"] {
		if b.DeskID == "A-1" && b.BookingDate.Format(database.DateLayout) == "2026-09-01" {
			accepted = b
		}
	}

	// Accept one
	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/decision", accepted.ID), token, map[string]bool{
		"accept": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decided := decodeBody[models.Booking](t, rec)
	assert.Equal(t, models.StatusAccepted, decided.Status)

	// Occupancy shows the accepted booking only
	rec = ts.request(t, http.MethodGet, "/api/occupancy?level=3&date=2026-09-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	occ := decodeBody[map[string]map[string]models.Booking](t, rec)
	require.Contains(t, occ["occupancy"], "A-1")
	assert.NotContains(t, occ["occupancy"], "A-2")

	// Revoke without reason is rejected
	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/revoke", accepted.ID), token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/revoke", accepted.ID), token, map[string]string{
		"reason": "desk maintenance",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.request(t, http.MethodGet, fmt.Sprintf("/api/bookings/%d", accepted.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Stats reflect what happened
	rec = ts.request(t, http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[models.BookingStats](t, rec)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 0, stats.Accepted)
}

func TestDesksEndpoint(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	rec := ts.request(t, http.MethodGet, "/api/desks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	desks := decodeBody[map[string][]models.Desk](t, rec)
	assert.Len(t, desks["desks"], 2)

	rec = ts.request(t, http.MethodGet, "/api/desks?level=4", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	desks = decodeBody[map[string][]models.Desk](t, rec)
	assert.Empty(t, desks["desks"])
}

func TestExportEndpoint(t *testing.T) {
	ts := setupServer(t)
	token := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	rec := ts.request(t, http.MethodGet, "/api/export/bookings.xlsx?start=2026-09-01&end=2026-09-07", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())

	rec = ts.request(t, http.MethodGet, "/api/export/bookings.xlsx?start=2026-09-07&end=2026-09-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	ts := setupServer(t)

	rec := ts.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemberVisibilityOverHTTP(t *testing.T) {
	ts := setupServer(t)
	adminToken := ts.login(t, models.DefaultSuperAdminEmail, models.DefaultPassword)

	rec := ts.request(t, http.MethodPost, "/api/users", adminToken, map[string]string{
		"name": "Member", "email": "member@office.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	member := decodeBody[models.User](t, rec)

	rec = ts.request(t, http.MethodPost, "/api/bookings", adminToken, map[string]any{
		"assignments": map[string]int64{"A-1": member.ID}, "dates": []string{"2026-09-01"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	memberToken := ts.login(t, "member@office.com", models.DefaultPassword)

	// Members cannot create assignments or decide
	rec = ts.request(t, http.MethodPost, "/api/bookings", memberToken, map[string]any{
		"assignments": map[string]int64{"A-1": member.ID}, "dates": []string{"2026-09-02"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// But they see their own ledger
	rec = ts.request(t, http.MethodGet, "/api/bookings", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := decodeBody[map[string][]models.Booking](t, rec)
	assert.Len(t, own["bookings"], 1)
}
