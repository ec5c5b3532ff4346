package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/athleticlabs/fuelgate/internal/threat"
	"github.com/athleticlabs/fuelgate/internal/tracing"
)

// scan checks query values and the request body for attack payloads. It
// writes the block response and returns true for high or critical
// findings. Lower severities are logged and let through.
func (p *Pipeline) scan(w http.ResponseWriter, r *http.Request) bool {
	inputs := queryInputs(r.URL.Query())

	body, err := p.peekBody(r)
	if err != nil {
		// Best effort: an unreadable body is left for the handler to reject.
		p.logger.DebugContext(r.Context(), "threat scan could not read body", slog.String("error", err.Error()))
	}
	inputs = append(inputs, bodyInputs(r.Header.Get("Content-Type"), body)...)

	assessment := threat.DetectAll(inputs...)
	if assessment.Clean {
		return false
	}

	p.deps.Metrics.IncThreat(assessment.Severity.String())
	tracing.AddEvent(r.Context(), "threat_detected",
		attribute.String("threat.severity", assessment.Severity.String()),
		attribute.StringSlice("threat.names", assessment.Threats),
		attribute.Bool("threat.blocked", assessment.Blocking()),
	)
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("severity", assessment.Severity.String()),
		slog.String("threats", assessment.Summary()),
	}
	if !assessment.Blocking() {
		p.logger.WarnContext(r.Context(), "threat detected", attrs...)
		return false
	}

	p.logger.WarnContext(r.Context(), "request blocked by threat scan", attrs...)
	p.writeThreatBlock(w, r)
	return true
}

// peekBody reads up to ThreatScanMaxBytes of the body and puts everything
// back so downstream handlers still see the full payload.
func (p *Pipeline) peekBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, p.cfg.ThreatScanMaxBytes))
	r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	return buf, err
}

type replayBody struct {
	io.Reader
	io.Closer
}

func queryInputs(values url.Values) []string {
	var out []string
	for key, vs := range values {
		out = append(out, key)
		out = append(out, vs...)
	}
	return out
}

// bodyInputs splits a body into scannable strings. Any body that parses
// as JSON is scanned per string key and value, whatever its Content-Type,
// because handlers decode JSON without checking the header. Form bodies
// are decoded. Anything else, including JSON cut off by the scan limit, is
// scanned as raw text with JSON unicode escapes resolved.
func bodyInputs(contentType string, body []byte) []string {
	if len(body) == 0 {
		return nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err == nil {
		return jsonStrings(doc, nil)
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		if values, err := url.ParseQuery(string(body)); err == nil {
			return queryInputs(values)
		}
	}

	raw := string(body)
	if unescaped := jsonEscape.ReplaceAllStringFunc(raw, unescapeJSON); unescaped != raw {
		return []string{raw, unescaped}
	}
	return []string{raw}
}

var jsonEscape = regexp.MustCompile(`\\u[0-9a-fA-F]{4}`)

// unescapeJSON turns one \uXXXX escape into its character.
func unescapeJSON(esc string) string {
	code, err := strconv.ParseUint(esc[2:], 16, 32)
	if err != nil {
		return esc
	}
	return string(rune(code))
}

func jsonStrings(v any, out []string) []string {
	switch t := v.(type) {
	case string:
		out = append(out, t)
	case []any:
		for _, item := range t {
			out = jsonStrings(item, out)
		}
	case map[string]any:
		for key, item := range t {
			out = append(out, key)
			out = jsonStrings(item, out)
		}
	}
	return out
}
