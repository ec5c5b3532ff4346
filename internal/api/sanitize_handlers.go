package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/athleticlabs/fuelgate/internal/sanitize"
)

// maxSanitizeBody caps the sanitize request body.
const maxSanitizeBody = 64 << 10

// SanitizeField is one named input in a sanitize request.
type SanitizeField struct {
	Value string        `json:"value"`
	Type  sanitize.Type `json:"type"`
}

// SanitizeOptions mirrors sanitize.Options on the wire. Omitted protections
// keep their defaults.
type SanitizeOptions struct {
	AllowHTML           bool     `json:"allow_html"`
	AllowedTags         []string `json:"allowed_tags"`
	AllowedAttributes   []string `json:"allowed_attributes"`
	MaxLength           int      `json:"max_length"`
	StripWhitespace     bool     `json:"strip_whitespace"`
	NormalizeWhitespace bool     `json:"normalize_whitespace"`
	AllowUnicode        bool     `json:"allow_unicode"`
}

// SanitizeRequest is the body of POST /api/public/sanitize.
type SanitizeRequest struct {
	Fields  map[string]SanitizeField `json:"fields"`
	Options SanitizeOptions          `json:"options"`
}

// SanitizeFieldResult is the per-field outcome.
type SanitizeFieldResult struct {
	Sanitized       string   `json:"sanitized"`
	Modified        bool     `json:"modified"`
	RemovedElements []string `json:"removed_elements"`
	Warnings        []string `json:"warnings"`
	IsValid         bool     `json:"is_valid"`
}

// SanitizeResponse is the body returned by POST /api/public/sanitize.
type SanitizeResponse struct {
	Fields          map[string]SanitizeFieldResult `json:"fields"`
	RemovedElements []string                       `json:"removed_elements"`
	Valid           bool                           `json:"valid"`
}

// Sanitize handles POST /api/public/sanitize. Forms call it to preview how
// their input will be cleaned before submitting.
func Sanitize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	var req SanitizeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSanitizeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r.Context(), http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if len(req.Fields) == 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "At least one field is required")
		return
	}

	values := make(map[string]string, len(req.Fields))
	types := make(map[string]sanitize.Type, len(req.Fields))
	for name, f := range req.Fields {
		typ := f.Type
		if typ == "" {
			typ = sanitize.TypeText
		}
		if !typ.Valid() {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation,
				fmt.Sprintf("Unknown type %q for field %q", f.Type, name))
			return
		}
		values[name] = f.Value
		types[name] = typ
	}

	results, removed := sanitize.Fields(values, types, req.Options.toOptions())

	resp := SanitizeResponse{
		Fields:          make(map[string]SanitizeFieldResult, len(results)),
		RemovedElements: nonNil(removed),
		Valid:           true,
	}
	for name, res := range results {
		resp.Fields[name] = SanitizeFieldResult{
			Sanitized:       res.Sanitized,
			Modified:        res.Modified,
			RemovedElements: nonNil(res.RemovedElements),
			Warnings:        nonNil(res.Warnings),
			IsValid:         res.IsValid,
		}
		resp.Valid = resp.Valid && res.IsValid
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode sanitize response", "error", err)
	}
}

func (o SanitizeOptions) toOptions() sanitize.Options {
	opts := sanitize.DefaultOptions()
	opts.AllowHTML = o.AllowHTML
	opts.AllowedTags = o.AllowedTags
	opts.AllowedAttributes = o.AllowedAttributes
	opts.MaxLength = o.MaxLength
	opts.StripWhitespace = o.StripWhitespace
	opts.NormalizeWhitespace = o.NormalizeWhitespace
	opts.AllowUnicode = o.AllowUnicode
	return opts
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
