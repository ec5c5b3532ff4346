// Package pipeline is the per-request security gate placed in front of the
// application. For every request it runs, in order: CORS preflight
// handling, static and public bypasses, threat scanning of mutating API
// calls, session resolution, the authorization cache, account and team
// checks, route policy authorization, identity header injection and an
// asynchronous audit write.
//
// Authorization failures never surface as 5xx responses. They become
// redirects to the login page or to a typed error page.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/athleticlabs/fuelgate/internal/audit"
	"github.com/athleticlabs/fuelgate/internal/authcache"
	"github.com/athleticlabs/fuelgate/internal/cors"
	"github.com/athleticlabs/fuelgate/internal/identity"
	"github.com/athleticlabs/fuelgate/internal/middleware"
	"github.com/athleticlabs/fuelgate/internal/policy"
	"github.com/athleticlabs/fuelgate/internal/session"
	"github.com/athleticlabs/fuelgate/internal/store"
	"github.com/athleticlabs/fuelgate/internal/tracing"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultCollaboratorTimeout = 3 * time.Second
	DefaultThreatScanMaxBytes  = 64 << 10
)

// Gate decisions reported to metrics.
const (
	DecisionPreflight              = "preflight"
	DecisionStatic                 = "static"
	DecisionPublic                 = "public"
	DecisionAnonymous              = "anonymous"
	DecisionAllowed                = "allowed"
	DecisionThreatBlocked          = "threat_blocked"
	DecisionLoginRedirect          = "login_redirect"
	DecisionAccountSuspended       = "account_suspended"
	DecisionTeamSuspended          = "team_suspended"
	DecisionInsufficientPermission = "insufficient_permissions"
	DecisionSystemError            = "system_error"
)

// ErrMissingDependency is returned by New when a required collaborator is
// nil.
var ErrMissingDependency = errors.New("missing pipeline dependency")

var errProfileNotFound = errors.New("profile not found")

// Config tunes the pipeline.
type Config struct {
	// CollaboratorTimeout bounds each session, profile and permission
	// lookup.
	CollaboratorTimeout time.Duration
	// ThreatScanMaxBytes caps how much of a request body is scanned.
	ThreatScanMaxBytes int64
	// PublicRoutes are exact paths that skip authentication. Nil uses
	// DefaultPublicRoutes.
	PublicRoutes []string
}

// Deps are the pipeline collaborators. Audit, Metrics and Logger are
// optional.
type Deps struct {
	CORS        *cors.Engine
	Sessions    session.Store
	Profiles    store.ProfileStore
	Permissions store.PermissionStore
	Cache       *authcache.Cache
	Policy      *policy.Resolver
	Audit       *audit.Dispatcher
	Metrics     *middleware.Metrics
	Logger      *slog.Logger
}

// Pipeline is the request gate. It is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	deps   Deps
	public map[string]struct{}
	logger *slog.Logger
}

// New validates deps and returns a pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.CORS == nil:
		return nil, fmt.Errorf("%w: cors engine", ErrMissingDependency)
	case deps.Sessions == nil:
		return nil, fmt.Errorf("%w: session store", ErrMissingDependency)
	case deps.Profiles == nil:
		return nil, fmt.Errorf("%w: profile store", ErrMissingDependency)
	case deps.Permissions == nil:
		return nil, fmt.Errorf("%w: permission store", ErrMissingDependency)
	case deps.Cache == nil:
		return nil, fmt.Errorf("%w: authorization cache", ErrMissingDependency)
	case deps.Policy == nil:
		return nil, fmt.Errorf("%w: route policy resolver", ErrMissingDependency)
	}

	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = DefaultCollaboratorTimeout
	}
	if cfg.ThreatScanMaxBytes <= 0 {
		cfg.ThreatScanMaxBytes = DefaultThreatScanMaxBytes
	}
	if cfg.PublicRoutes == nil {
		cfg.PublicRoutes = DefaultPublicRoutes
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	public := make(map[string]struct{}, len(cfg.PublicRoutes))
	for _, p := range cfg.PublicRoutes {
		public[p] = struct{}{}
	}

	return &Pipeline{cfg: cfg, deps: deps, public: public, logger: logger}, nil
}

// Handler wraps next with the gate. next only sees requests that passed,
// carrying identity headers when the caller is authenticated.
func (p *Pipeline) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := cors.Classify(r.URL.Path)
		if r.Method == http.MethodOptions {
			p.deps.CORS.Preflight(w, r, kind)
			p.deps.Metrics.IncGateDecision(DecisionPreflight)
			return
		}

		w = p.deps.CORS.Wrap(w, r, kind)
		forward, ok := p.authorize(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, forward)
	})
}

// authorize runs every step up to and including header injection. It
// returns the request to forward, or false when a response was written.
func (p *Pipeline) authorize(w http.ResponseWriter, r *http.Request) (forward *http.Request, ok bool) {
	ctx, endSpan := tracing.StartSpan(r.Context(), "pipeline.authorize")
	r = r.WithContext(ctx)

	var spanErr error
	defer func() {
		if rec := recover(); rec != nil {
			spanErr = fmt.Errorf("panic: %v", rec)
			p.logger.ErrorContext(ctx, "pipeline panic",
				slog.Any("panic", rec),
				slog.String("path", r.URL.Path),
			)
			p.redirectError(w, r, ReasonSystemError)
			forward, ok = nil, false
		}
		endSpan(spanErr)
	}()

	path := r.URL.Path

	if isStaticAsset(path) {
		p.deps.Metrics.IncGateDecision(DecisionStatic)
		return r, true
	}

	if isAPIPath(path) && r.Method != http.MethodGet {
		if blocked := p.scan(w, r); blocked {
			return nil, false
		}
	}

	if _, public := p.public[path]; public {
		p.deps.Metrics.IncGateDecision(DecisionPublic)
		return anonymous(r), true
	}

	route := p.deps.Policy.Resolve(path)
	protected := route != nil && route.RequiresAuth

	sess, err := call(ctx, p, collaboratorSession, func(ctx context.Context) (*session.Session, error) {
		return p.deps.Sessions.Lookup(ctx, r.Cookies())
	})
	if err != nil || sess == nil || sess.UserID == "" {
		if err != nil {
			p.logger.WarnContext(ctx, "session lookup failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		if !protected {
			p.deps.Metrics.IncGateDecision(DecisionAnonymous)
			return anonymous(r), true
		}
		p.redirectLogin(w, r)
		return nil, false
	}

	entry, err := p.entry(ctx, sess.UserID)
	if err != nil {
		p.logger.WarnContext(ctx, "profile lookup failed",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		p.redirectLogin(w, r)
		return nil, false
	}
	profile := entry.Profile
	tracing.SetAttributes(ctx,
		attribute.String("user.id", profile.UserID),
		attribute.String("user.role", string(profile.Role)),
	)

	if !profile.IsActive {
		p.deny(w, r, profile, ReasonAccountSuspended)
		return nil, false
	}
	if profile.HasTeam() && !profile.TeamIsActive {
		p.deny(w, r, profile, ReasonTeamSuspended)
		return nil, false
	}

	if route != nil {
		if !route.AllowsRole(profile.Role) {
			p.deny(w, r, profile, ReasonInsufficientPermissions)
			return nil, false
		}
		if route.RequiresPermissions() && profile.HasTeam() {
			perms, err := p.permissions(ctx, entry)
			if err != nil {
				spanErr = err
				p.logger.ErrorContext(ctx, "permission lookup failed",
					slog.String("user_id", profile.UserID),
					slog.String("team_id", profile.TeamID),
					slog.String("error", err.Error()),
				)
				p.redirectError(w, r, ReasonSystemError)
				return nil, false
			}
			if missing := perms.Missing(route.Permissions...); len(missing) > 0 {
				p.logger.InfoContext(ctx, "missing permissions",
					slog.String("user_id", profile.UserID),
					slog.String("pattern", route.Pattern),
					slog.Any("missing", missing),
				)
				p.deny(w, r, profile, ReasonInsufficientPermissions)
				return nil, false
			}
		}
	}

	id := identity.Identity{UserID: profile.UserID, Role: profile.Role, TeamID: profile.TeamID}
	forward = withIdentity(r, id)

	if p.deps.Audit != nil {
		p.deps.Audit.Dispatch(audit.NewEvent(forward, id.UserID, id.TeamID))
	}
	p.deps.Metrics.IncGateDecision(DecisionAllowed)
	return forward, true
}

// entry returns the cached snapshot for userID, loading the profile on a
// miss.
func (p *Pipeline) entry(ctx context.Context, userID string) (authcache.Entry, error) {
	if entry, ok := p.deps.Cache.Get(userID); ok {
		p.deps.Metrics.IncCacheLookup(true)
		return entry, nil
	}
	p.deps.Metrics.IncCacheLookup(false)

	profile, err := call(ctx, p, collaboratorProfile, func(ctx context.Context) (*identity.Profile, error) {
		return p.deps.Profiles.GetProfile(ctx, userID)
	})
	if err != nil {
		return authcache.Entry{}, err
	}
	if profile == nil {
		return authcache.Entry{}, errProfileNotFound
	}
	if profile.UserID == "" {
		profile.UserID = userID
	}
	return p.deps.Cache.Set(userID, *profile), nil
}

// permissions returns the entry's permissions, fetching and attaching them
// on first use. A store with no record yields an empty set.
func (p *Pipeline) permissions(ctx context.Context, entry authcache.Entry) (identity.Permissions, error) {
	if entry.HasPermissions() {
		return entry.Permissions, nil
	}

	profile := entry.Profile
	perms, err := call(ctx, p, collaboratorPermissions, func(ctx context.Context) (identity.Permissions, error) {
		return p.deps.Permissions.GetPermissions(ctx, profile.UserID, profile.TeamID)
	})
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = identity.Permissions{}
	}
	p.deps.Cache.AttachPermissions(profile.UserID, perms)
	return perms, nil
}

func (p *Pipeline) deny(w http.ResponseWriter, r *http.Request, profile identity.Profile, reason Reason) {
	p.logger.InfoContext(r.Context(), "request denied",
		slog.String("user_id", profile.UserID),
		slog.String("role", string(profile.Role)),
		slog.String("path", r.URL.Path),
		slog.String("reason", string(reason)),
	)
	p.redirectError(w, r, reason)
}
