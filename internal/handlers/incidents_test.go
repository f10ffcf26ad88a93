package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campus-incidents/apiserver/internal/services"
	"github.com/campus-incidents/apiserver/internal/store"
	"github.com/campus-incidents/apiserver/types"
)

const testSecret = "test-secret"

type memIncidentRepo struct {
	incidents map[string]types.Incident
}

func (r *memIncidentRepo) Get(ctx context.Context, incidentID string) (types.Incident, error) {
	incident, ok := r.incidents[incidentID]
	if !ok {
		return types.Incident{}, store.ErrNotFound
	}
	return incident, nil
}

func (r *memIncidentRepo) List(ctx context.Context, offset, limit int) ([]types.Incident, int, error) {
	var out []types.Incident
	for _, incident := range r.incidents {
		out = append(out, incident)
	}
	return out, len(out), nil
}

func (r *memIncidentRepo) Create(ctx context.Context, incident types.Incident) (types.Incident, error) {
	r.incidents[incident.IncidentID] = incident
	return incident, nil
}

func (r *memIncidentRepo) UpdateStatus(ctx context.Context, incidentID, newStatus string, entry types.HistoryEntry) error {
	incident, ok := r.incidents[incidentID]
	if !ok {
		return store.ErrNotFound
	}
	incident.Status = newStatus
	incident.History = append(incident.History, entry)
	r.incidents[incidentID] = incident
	return nil
}

func (r *memIncidentRepo) UpdateFields(ctx context.Context, incidentID string, edit types.IncidentEdit, updatedAt time.Time) error {
	incident, ok := r.incidents[incidentID]
	if !ok {
		return store.ErrNotFound
	}
	if edit.Description != nil {
		incident.Description = *edit.Description
	}
	incident.UpdatedAt = updatedAt
	r.incidents[incidentID] = incident
	return nil
}

type memUserRepo struct {
	users map[string]types.User
}

func (r *memUserRepo) GetByID(ctx context.Context, userID string) (types.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByDNI(ctx context.Context, dni string) (types.User, error) {
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.users[user.UserID] = user
	return user, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyRole(ctx context.Context, message any, role string) {}
func (noopNotifier) NotifyUser(ctx context.Context, message any, userID string) {}

func newTestRouter(t *testing.T, incidents map[string]types.Incident, users map[string]types.User) *chi.Mux {
	t.Helper()

	incidentRepo := &memIncidentRepo{incidents: incidents}
	userRepo := &memUserRepo{users: users}
	incidentService := services.NewIncidentService(incidentRepo, userRepo, noopNotifier{}, nil, "")
	attachmentService := services.NewAttachmentService(nil)

	router := chi.NewRouter()
	router.Use(CORS)
	router.Route("/incidents", func(r chi.Router) {
		IncidentRouter(r, incidentService, attachmentService, RequireAuth(testSecret))
	})
	return router
}

func tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := issueToken(user, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUpdateStatusEndpoint(t *testing.T) {
	admin := types.User{UserID: "A1", Role: types.RoleAdministrativeStaff}
	student := types.User{UserID: "S1", Role: types.RoleStudent}
	incidents := map[string]types.Incident{
		"I1": {IncidentID: "I1", Status: types.StatusPending, CreatedBy: "U1"},
	}
	users := map[string]types.User{"A1": admin, "S1": student}
	router := newTestRouter(t, incidents, users)

	t.Run("admin transition succeeds", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/I1/status", tokenFor(t, admin), `{"new_status":"completed"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var result services.StatusUpdate
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if result.NewStatus != types.StatusCompleted {
			t.Fatalf("unexpected result: %+v", result)
		}
	})

	t.Run("student transition is forbidden", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/I1/status", tokenFor(t, student), `{"new_status":"rejected"}`)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("invalid status is a validation error", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/I1/status", tokenFor(t, admin), `{"new_status":"done"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown incident is 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/nope/status", tokenFor(t, admin), `{"new_status":"completed"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("missing token is 401", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/I1/status", "", `{"new_status":"completed"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestEditEndpoint(t *testing.T) {
	admin := types.User{UserID: "A1", Role: types.RoleAuthority}
	incidents := map[string]types.Incident{
		"P1": {IncidentID: "P1", Status: types.StatusPending, CreatedBy: "U1"},
		"C1": {IncidentID: "C1", Status: types.StatusCompleted, CreatedBy: "U1"},
	}
	users := map[string]types.User{"A1": admin}
	router := newTestRouter(t, incidents, users)

	t.Run("pending incident is editable", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/P1", tokenFor(t, admin), `{"description":"updated"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("non-pending incident is not editable", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/C1", tokenFor(t, admin), `{"description":"updated"}`)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("unknown fields alone are rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/incidents/P1", tokenFor(t, admin), `{"status":"completed"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCORSHeadersOnResponses(t *testing.T) {
	router := newTestRouter(t, map[string]types.Incident{}, map[string]types.User{})

	rec := doJSON(t, router, http.MethodGet, "/incidents/", "", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("missing CORS origin header, got %q", got)
	}

	preflight := doJSON(t, router, http.MethodOptions, "/incidents/", "", "")
	if preflight.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", preflight.Code)
	}
	if got := preflight.Header().Get("Access-Control-Allow-Methods"); got != "OPTIONS,POST,GET,PUT,DELETE" {
		t.Fatalf("unexpected allowed methods %q", got)
	}
}
