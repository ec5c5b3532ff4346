package sanitize

import (
	"strings"
	"testing"
)

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestSanitize_Name(t *testing.T) {
	res := Sanitize("  John   O'Brien-Smith!!  ", TypeName, DefaultOptions())

	if res.Sanitized != "John O'brien-Smith" {
		t.Errorf("Sanitized = %q, want %q", res.Sanitized, "John O'brien-Smith")
	}
	if !res.Modified {
		t.Error("expected Modified to be true")
	}
	if !res.IsValid {
		t.Errorf("expected valid name, warnings: %v", res.Warnings)
	}
	if !contains(res.RemovedElements, RemovedDisallowedChars) {
		t.Errorf("expected %q in %v", RemovedDisallowedChars, res.RemovedElements)
	}
}

func TestSanitize_Text(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		opts        Options
		want        string
		wantRemoved string
	}{
		{
			name:        "script block",
			input:       `hello<script>alert(1)</script> world`,
			opts:        DefaultOptions(),
			want:        "hello world",
			wantRemoved: RemovedScriptTags,
		},
		{
			name:        "event handler",
			input:       `<img src=x onerror="steal()">`,
			opts:        DefaultOptions(),
			want:        `<img src=x >`,
			wantRemoved: RemovedEventHandlers,
		},
		{
			name:        "javascript url",
			input:       `javascript:alert(1)`,
			opts:        DefaultOptions(),
			want:        `alert(1)`,
			wantRemoved: RemovedJavascriptURLs,
		},
		{
			name:        "path traversal",
			input:       `../../etc/passwd`,
			opts:        DefaultOptions(),
			want:        `etc/passwd`,
			wantRemoved: RemovedPathTraversal,
		},
		{
			name:        "unicode removed by default",
			input:       "café",
			opts:        DefaultOptions(),
			want:        "caf",
			wantRemoved: RemovedUnicode,
		},
		{
			name:        "control characters",
			input:       "a\x00b\x07c",
			opts:        DefaultOptions(),
			want:        "abc",
			wantRemoved: RemovedControlChars,
		},
		{
			name:        "max length",
			input:       "abcdefgh",
			opts:        Options{MaxLength: 3},
			want:        "abc",
			wantRemoved: RemovedExcessLength,
		},
		{
			name:        "normalize whitespace",
			input:       "  a \t\n b  ",
			opts:        Options{NormalizeWhitespace: true},
			want:        "a b",
			wantRemoved: RemovedWhitespace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sanitize(tt.input, TypeText, tt.opts)
			if res.Sanitized != tt.want {
				t.Errorf("Sanitized = %q, want %q", res.Sanitized, tt.want)
			}
			if !contains(res.RemovedElements, tt.wantRemoved) {
				t.Errorf("expected %q in %v", tt.wantRemoved, res.RemovedElements)
			}
			if !res.Modified {
				t.Error("expected Modified to be true")
			}
		})
	}
}

func TestSanitize_TextUnchanged(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowUnicode = true
	res := Sanitize("Grilled chicken, no nuts. Café at 6pm", TypeText, opts)
	if res.Modified {
		t.Errorf("expected clean text to be unchanged, got %q (%v)", res.Sanitized, res.RemovedElements)
	}
	if len(res.RemovedElements) != 0 {
		t.Errorf("expected nothing removed, got %v", res.RemovedElements)
	}
	if !res.IsValid {
		t.Error("expected text to be valid")
	}
}

func TestSanitize_TextWarnsOnThreats(t *testing.T) {
	res := Sanitize(`1 UNION SELECT password FROM users`, TypeText, DefaultOptions())
	if len(res.Warnings) == 0 {
		t.Error("expected a threat warning")
	}
}

func TestSanitize_HTML(t *testing.T) {
	t.Run("strict policy strips all markup", func(t *testing.T) {
		res := Sanitize(`<p onclick="x()">Hi <b>there</b><script>alert(1)</script></p>`, TypeHTML, DefaultOptions())
		if strings.Contains(res.Sanitized, "<") {
			t.Errorf("expected no markup, got %q", res.Sanitized)
		}
		if !strings.Contains(res.Sanitized, "Hi") || !strings.Contains(res.Sanitized, "there") {
			t.Errorf("expected text content kept, got %q", res.Sanitized)
		}
		if strings.Contains(res.Sanitized, "alert") {
			t.Errorf("expected script content dropped, got %q", res.Sanitized)
		}
		for _, want := range []string{RemovedScriptTags, RemovedEventHandlers, RemovedHTMLTags} {
			if !contains(res.RemovedElements, want) {
				t.Errorf("expected %q in %v", want, res.RemovedElements)
			}
		}
	})

	t.Run("allow list keeps formatting tags", func(t *testing.T) {
		opts := DefaultOptions()
		opts.AllowHTML = true
		res := Sanitize(`<p>Hi <b>there</b> <a href="https://x.test">link</a></p>`, TypeHTML, opts)
		if !strings.Contains(res.Sanitized, "<b>there</b>") {
			t.Errorf("expected <b> kept, got %q", res.Sanitized)
		}
		if strings.Contains(res.Sanitized, "<a") {
			t.Errorf("expected <a> removed, got %q", res.Sanitized)
		}
	})
}

func TestSanitize_Email(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantValid bool
	}{
		{"valid", "coach@team.com", "coach@team.com", true},
		{"normalized", "  Coach@Team.COM ", "coach@team.com", true},
		{"plus tag", "ops+fuel@team.org", "ops+fuel@team.org", true},
		{"empty", "", "", false},
		{"missing at", "coach.team.com", "", false},
		{"double domain dots", "a@team..com", "", false},
		{"long local part", strings.Repeat("a", 65) + "@team.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sanitize(tt.input, TypeEmail, DefaultOptions())
			if res.Sanitized != tt.want {
				t.Errorf("Sanitized = %q, want %q", res.Sanitized, tt.want)
			}
			if res.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (warnings %v)", res.IsValid, tt.wantValid, res.Warnings)
			}
			if !tt.wantValid && len(res.Warnings) == 0 {
				t.Error("expected a warning for invalid email")
			}
		})
	}
}

func TestSanitize_URL(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantValid bool
	}{
		{"https", "https://athleticlabs.test/menu", "https://athleticlabs.test/menu", true},
		{"http", " http://example.com ", "http://example.com", true},
		{"javascript", "javascript:alert(1)", "", false},
		{"javascript with tab", "java\tscript:alert(1)", "", false},
		{"vbscript", "VBScript:msgbox(1)", "", false},
		{"data", "data:text/html;base64,PHNjcmlwdD4=", "", false},
		{"file", "file:///etc/passwd", "", false},
		{"ftp", "ftp://example.com", "", false},
		{"relative", "/orders/1", "", false},
		{"missing host", "https://", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sanitize(tt.input, TypeURL, DefaultOptions())
			if res.Sanitized != tt.want {
				t.Errorf("Sanitized = %q, want %q", res.Sanitized, tt.want)
			}
			if res.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", res.IsValid, tt.wantValid)
			}
		})
	}
}

func TestSanitize_Phone(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantValid bool
	}{
		{"formatted", "+1 (555) 123-4567", "+1 (555) 123-4567", true},
		{"letters removed", "555-123-4567 ext", "555-123-4567", true},
		{"too short", "555-1234", "555-1234", false},
		{"too long", "1234567890123456", "1234567890123456", false},
		{"empty", "call me", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sanitize(tt.input, TypePhone, DefaultOptions())
			if res.Sanitized != tt.want {
				t.Errorf("Sanitized = %q, want %q", res.Sanitized, tt.want)
			}
			if res.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", res.IsValid, tt.wantValid)
			}
		})
	}
}

func TestSanitize_Address(t *testing.T) {
	res := Sanitize("  123 Main St.,  Apt #4 <b>  ", TypeAddress, DefaultOptions())
	if res.Sanitized != "123 Main St., Apt #4 b" {
		t.Errorf("Sanitized = %q", res.Sanitized)
	}
	if !contains(res.RemovedElements, RemovedDisallowedChars) {
		t.Errorf("expected %q in %v", RemovedDisallowedChars, res.RemovedElements)
	}
}

func TestSanitize_JSON(t *testing.T) {
	t.Run("compacts", func(t *testing.T) {
		res := Sanitize(`{ "a": 1,  "b": [true, null] }`, TypeJSON, DefaultOptions())
		if res.Sanitized != `{"a":1,"b":[true,null]}` {
			t.Errorf("Sanitized = %q", res.Sanitized)
		}
		if !res.IsValid {
			t.Error("expected valid json")
		}
	})

	t.Run("escapes markup in strings", func(t *testing.T) {
		res := Sanitize(`{"note":"<script>"}`, TypeJSON, DefaultOptions())
		if strings.Contains(res.Sanitized, "<") {
			t.Errorf("expected escaped markup, got %q", res.Sanitized)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		res := Sanitize(`{"a":`, TypeJSON, DefaultOptions())
		if res.Sanitized != "" || res.IsValid {
			t.Errorf("expected empty invalid result, got %q valid=%v", res.Sanitized, res.IsValid)
		}
		if !contains(res.RemovedElements, RemovedMalformedJSON) {
			t.Errorf("expected %q in %v", RemovedMalformedJSON, res.RemovedElements)
		}
	})
}

func TestSanitize_SQLIdentifier(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantValid   bool
		wantWarning bool
	}{
		{"plain", "meal_orders", "meal_orders", true, false},
		{"stripped", "orders; DROP--", "ordersDROP", true, false},
		{"leading digit", "2024_orders", "_2024_orders", true, true},
		{"keyword part", "select_items", "select_items", true, true},
		{"empty", "--;", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sanitize(tt.input, TypeSQLIdentifier, DefaultOptions())
			if res.Sanitized != tt.want {
				t.Errorf("Sanitized = %q, want %q", res.Sanitized, tt.want)
			}
			if res.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", res.IsValid, tt.wantValid)
			}
			if (len(res.Warnings) > 0) != tt.wantWarning {
				t.Errorf("warnings = %v, wantWarning %v", res.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestSanitize_Filename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "menu.pdf", "menu.pdf"},
		{"traversal", "../../etc/passwd", "etcpasswd"},
		{"windows separators", `..\..\boot.ini`, "boot.ini"},
		{"forbidden characters", `in<voice>:2024?.pdf`, "invoice2024.pdf"},
		{"reserved name", "CON.txt", "_CON.txt"},
		{"trailing dots", "report.pdf. . ", "report.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sanitize(tt.input, TypeFilename, DefaultOptions())
			if res.Sanitized != tt.want {
				t.Errorf("Sanitized = %q, want %q", res.Sanitized, tt.want)
			}
		})
	}

	t.Run("long name keeps extension", func(t *testing.T) {
		res := Sanitize(strings.Repeat("a", 300)+".pdf", TypeFilename, DefaultOptions())
		if len(res.Sanitized) != maxFilenameBytes {
			t.Errorf("expected %d bytes, got %d", maxFilenameBytes, len(res.Sanitized))
		}
		if !strings.HasSuffix(res.Sanitized, ".pdf") {
			t.Errorf("expected .pdf suffix, got %q", res.Sanitized[len(res.Sanitized)-8:])
		}
	})

	t.Run("empty", func(t *testing.T) {
		res := Sanitize("../", TypeFilename, DefaultOptions())
		if res.Sanitized != "" || res.IsValid {
			t.Errorf("expected empty invalid result, got %q valid=%v", res.Sanitized, res.IsValid)
		}
	})
}

// Sanitizing a sanitized value must not change it further.
func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"  John   O'Brien-Smith!!  ",
		`<p onclick="x()">Hi & <b>bye</b><script>alert(1)</script></p>`,
		"javajavascript:script:alert(1)",
		"....//....//etc/passwd",
		".é./secret",
		"  Coach@Team.COM ",
		"java\tscript:alert(1)",
		"+1 (555) 123-4567 ext. 9",
		`{ "a": "<b>",  "b": [1, 2] }`,
		"9 DROP; table--name",
		"CON..txt",
		strings.Repeat("word ", 80),
		"tab\there\x00and café",
		nestedScript(8),
		"a" + strings.Repeat("..", 8) + strings.Repeat("/", 8) + "b",
		"<scr..//ipt>alert(1)</scr../ipt>",
		"jajajavascript:vascript:vascript:alert(1)",
	}

	optionSets := map[string]Options{
		"default": DefaultOptions(),
		"truncating": {
			MaxLength:            17,
			NormalizeWhitespace:  true,
			PreventInjection:     true,
			PreventPathTraversal: true,
		},
		"html allowed": {
			AllowHTML:    true,
			AllowUnicode: true,
			MaxLength:    40,
		},
	}

	types := []Type{
		TypeText, TypeHTML, TypeEmail, TypeURL, TypePhone,
		TypeName, TypeAddress, TypeJSON, TypeSQLIdentifier, TypeFilename,
	}

	for optName, opts := range optionSets {
		for _, typ := range types {
			for _, in := range inputs {
				first := Sanitize(in, typ, opts)
				second := Sanitize(first.Sanitized, typ, opts)
				if second.Sanitized != first.Sanitized {
					t.Errorf("%s/%s: not idempotent for %q: %q then %q",
						optName, typ, in, first.Sanitized, second.Sanitized)
				}
				if second.Modified {
					t.Errorf("%s/%s: second pass reported modification for %q", optName, typ, first.Sanitized)
				}
			}
		}
	}
}

// nestedScript wraps a script tag in depth partial tags that reassemble
// into new tags as inner ones are removed.
func nestedScript(depth int) string {
	return "x" + strings.Repeat("<scr", depth) + "<script>" + strings.Repeat("ipt>", depth) + "y"
}

func TestSanitize_TextDeepNesting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"nested script tags", nestedScript(8), "xy"},
		{"nested script tags deep", nestedScript(40), "xy"},
		{"nested traversal", "a" + strings.Repeat("..", 8) + strings.Repeat("/", 8) + "b", "ab"},
		{"nested javascript protocol", "jajajavascript:vascript:vascript:alert(1)", "alert(1)"},
		{"traversal splitting a tag", "<scr../ipt>x", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Sanitize(tt.input, TypeText, DefaultOptions())
			if res.Sanitized != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, res.Sanitized, tt.want)
			}
			if strings.Contains(strings.ToLower(res.Sanitized), "<script") {
				t.Errorf("Sanitize(%q) left a script tag: %q", tt.input, res.Sanitized)
			}
		})
	}
}

func TestSanitize_UnknownTypeFallsBackToText(t *testing.T) {
	res := Sanitize("<script>x</script>ok", Type("bogus"), DefaultOptions())
	if res.Sanitized != "ok" {
		t.Errorf("Sanitized = %q, want %q", res.Sanitized, "ok")
	}
}

func TestFields(t *testing.T) {
	values := map[string]string{
		"email":   " Coach@Team.com",
		"name":    "ann   lee!",
		"comment": "<script>x</script>thanks",
	}
	types := map[string]Type{
		"email": TypeEmail,
		"name":  TypeName,
	}

	results, removed := Fields(values, types, DefaultOptions())

	if results["email"].Sanitized != "coach@team.com" {
		t.Errorf("email = %q", results["email"].Sanitized)
	}
	if results["name"].Sanitized != "Ann Lee" {
		t.Errorf("name = %q", results["name"].Sanitized)
	}
	if results["comment"].Sanitized != "thanks" {
		t.Errorf("comment = %q", results["comment"].Sanitized)
	}
	for _, want := range []string{RemovedScriptTags, RemovedDisallowedChars} {
		if !contains(removed, want) {
			t.Errorf("expected %q in aggregated %v", want, removed)
		}
	}
}
