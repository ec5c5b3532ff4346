package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/athleticlabs/fuelgate/internal/audit"
	"github.com/athleticlabs/fuelgate/internal/middleware"
)

// Audit listing limits.
const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditEntry is one access audit record on the wire.
type AuditEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TeamID    string    `json:"team_id,omitempty"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditListResponse is the body returned by GET /api/v1/admin/audit.
type AuditListResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// AuditHandlers serves the access audit trail to Athletic Labs staff.
// Authorization happens in the gateway pipeline in front of it.
type AuditHandlers struct {
	repo audit.Repository
}

// NewAuditHandlers creates audit handlers reading from repo.
func NewAuditHandlers(repo audit.Repository) *AuditHandlers {
	return &AuditHandlers{repo: repo}
}

// ListByUser handles GET /api/v1/admin/audit?user_id=...&limit=...
// Entries are returned newest first.
func (h *AuditHandlers) ListByUser(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("user_id"))
	if userID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	limit := defaultAuditLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.repo.QueryByUser(r.Context(), userID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to query audit log",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load audit entries")
		return
	}

	slog.InfoContext(r.Context(), "audit trail viewed",
		slog.String("viewer_id", middleware.GetUserID(r.Context())),
		slog.String("user_id", userID),
		slog.Int("entries", len(entries)),
	)

	resp := AuditListResponse{Entries: make([]AuditEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, AuditEntry{
			ID:        e.ID,
			UserID:    e.Event.UserID,
			TeamID:    e.Event.TeamID,
			Path:      e.Event.Path,
			Method:    e.Event.Method,
			IPAddress: e.Event.IPAddress,
			UserAgent: e.Event.UserAgent,
			RequestID: e.Event.RequestID,
			CreatedAt: e.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode audit response", "error", err)
	}
}
