package pipeline

import (
	"context"
	"net/http"

	"github.com/athleticlabs/fuelgate/internal/identity"
	"github.com/athleticlabs/fuelgate/internal/middleware"
)

// Identity headers added to forwarded requests. Inbound copies are always
// removed first.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
	HeaderTeamID   = "X-Team-Id"
)

type identityKey struct{}

// IdentityFromContext returns the identity the gate attached to ctx.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(identity.Identity)
	return id, ok
}

// anonymous returns r with any client-supplied identity headers removed.
func anonymous(r *http.Request) *http.Request {
	if !hasIdentityHeaders(r.Header) {
		return r
	}
	out := r.Clone(r.Context())
	stripIdentityHeaders(out.Header)
	return out
}

// withIdentity returns a copy of r carrying id in its headers and context.
func withIdentity(r *http.Request, id identity.Identity) *http.Request {
	ctx := context.WithValue(r.Context(), identityKey{}, id)
	ctx = middleware.SetUserID(ctx, id.UserID)

	out := r.Clone(ctx)
	stripIdentityHeaders(out.Header)
	out.Header.Set(HeaderUserID, id.UserID)
	out.Header.Set(HeaderUserRole, string(id.Role))
	if id.TeamID != "" {
		out.Header.Set(HeaderTeamID, id.TeamID)
	}
	return out
}

func hasIdentityHeaders(h http.Header) bool {
	return len(h.Values(HeaderUserID)) > 0 ||
		len(h.Values(HeaderUserRole)) > 0 ||
		len(h.Values(HeaderTeamID)) > 0
}

func stripIdentityHeaders(h http.Header) {
	h.Del(HeaderUserID)
	h.Del(HeaderUserRole)
	h.Del(HeaderTeamID)
}
