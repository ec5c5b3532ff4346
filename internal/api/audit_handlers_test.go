package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/athleticlabs/fuelgate/internal/audit"
)

// failingRepo is an audit repository whose queries always fail.
type failingRepo struct {
	audit.SinkFunc
}

func (failingRepo) QueryByUser(context.Context, string, int) ([]*audit.Entry, error) {
	return nil, errors.New("connection refused")
}

func seededAuditRepo(t *testing.T, n int) *audit.InMemoryRepository {
	t.Helper()
	repo := audit.NewInMemoryRepository(0)
	for i := 0; i < n; i++ {
		err := repo.Record(context.Background(), audit.Event{
			UserID:    "coach-1",
			TeamID:    "team-1",
			Path:      fmt.Sprintf("/api/v1/orders/%d", i),
			Method:    http.MethodGet,
			RequestID: fmt.Sprintf("req-%d", i),
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	return repo
}

func TestAuditHandlers_ListByUser(t *testing.T) {
	h := NewAuditHandlers(seededAuditRepo(t, 60))

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantFirst string
	}{
		{"default limit", "user_id=coach-1", defaultAuditLimit, "/api/v1/orders/59"},
		{"explicit limit", "user_id=coach-1&limit=3", 3, "/api/v1/orders/59"},
		{"unknown user", "user_id=nobody", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?"+tt.query, nil)
			w := httptest.NewRecorder()
			h.ListByUser(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp AuditListResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Entries == nil {
				t.Fatal("entries should encode as an array, not null")
			}
			if len(resp.Entries) != tt.wantCount {
				t.Fatalf("got %d entries, want %d", len(resp.Entries), tt.wantCount)
			}
			if tt.wantCount == 0 {
				return
			}
			first := resp.Entries[0]
			if first.Path != tt.wantFirst || first.UserID != "coach-1" || first.TeamID != "team-1" {
				t.Errorf("first entry = %+v", first)
			}
			if first.ID == "" || first.RequestID == "" || first.CreatedAt.IsZero() {
				t.Errorf("first entry missing fields: %+v", first)
			}
		})
	}
}

func TestAuditHandlers_ListByUserErrors(t *testing.T) {
	tests := []struct {
		name       string
		repo       audit.Repository
		query      string
		wantStatus int
		wantCode   string
	}{
		{"missing user", seededAuditRepo(t, 1), "", http.StatusBadRequest, ErrCodeValidation},
		{"blank user", seededAuditRepo(t, 1), "user_id=%20%20", http.StatusBadRequest, ErrCodeValidation},
		{"non numeric limit", seededAuditRepo(t, 1), "user_id=coach-1&limit=ten", http.StatusBadRequest, ErrCodeValidation},
		{"zero limit", seededAuditRepo(t, 1), "user_id=coach-1&limit=0", http.StatusBadRequest, ErrCodeValidation},
		{"limit too large", seededAuditRepo(t, 1), "user_id=coach-1&limit=501", http.StatusBadRequest, ErrCodeValidation},
		{"repository failure", failingRepo{}, "user_id=coach-1", http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?"+tt.query, nil)
			w := httptest.NewRecorder()
			NewAuditHandlers(tt.repo).ListByUser(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse error body: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}
