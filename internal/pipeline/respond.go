package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/athleticlabs/fuelgate/internal/middleware"
)

// Reason is the type parameter of the error page redirect.
type Reason string

// Error page reasons.
const (
	ReasonAccountSuspended        Reason = "account-suspended"
	ReasonTeamSuspended           Reason = "team-suspended"
	ReasonInsufficientPermissions Reason = "insufficient-permissions"
	ReasonSystemError             Reason = "system-error"
)

// Redirect targets.
const (
	LoginPath = "/login"
	ErrorPath = "/error"
)

// Threat block response.
const (
	ThreatBlockCode   = "THREAT_DETECTED"
	HeaderThreatBlock = "X-Security-Block"
	threatBlockValue  = "threat-detected"
)

var reasonDecisions = map[Reason]string{
	ReasonAccountSuspended:        DecisionAccountSuspended,
	ReasonTeamSuspended:           DecisionTeamSuspended,
	ReasonInsufficientPermissions: DecisionInsufficientPermission,
	ReasonSystemError:             DecisionSystemError,
}

// LoginURL is the login redirect target preserving returnTo.
func LoginURL(returnTo string) string {
	// Slashes are legal in a query component and keep the target readable.
	return LoginPath + "?redirectTo=" + strings.ReplaceAll(url.QueryEscape(returnTo), "%2F", "/")
}

// ErrorURL is the error page redirect target for reason.
func ErrorURL(reason Reason) string {
	return ErrorPath + "?type=" + url.QueryEscape(string(reason))
}

func (p *Pipeline) redirectLogin(w http.ResponseWriter, r *http.Request) {
	middleware.SetErrorCode(r.Context(), DecisionLoginRedirect)
	p.deps.Metrics.IncGateDecision(DecisionLoginRedirect)
	http.Redirect(w, r, LoginURL(r.URL.Path), http.StatusTemporaryRedirect)
}

func (p *Pipeline) redirectError(w http.ResponseWriter, r *http.Request, reason Reason) {
	middleware.SetErrorCode(r.Context(), string(reason))
	p.deps.Metrics.IncGateDecision(reasonDecisions[reason])
	http.Redirect(w, r, ErrorURL(reason), http.StatusTemporaryRedirect)
}

type threatBlockBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

func (p *Pipeline) writeThreatBlock(w http.ResponseWriter, r *http.Request) {
	middleware.SetErrorCode(r.Context(), ThreatBlockCode)
	p.deps.Metrics.IncGateDecision(DecisionThreatBlocked)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderThreatBlock, threatBlockValue)
	w.WriteHeader(http.StatusBadRequest)

	body := threatBlockBody{
		Error:     "Request blocked due to security policy",
		Code:      ThreatBlockCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		p.logger.ErrorContext(r.Context(), "failed to encode threat block", slog.String("error", err.Error()))
	}
}
