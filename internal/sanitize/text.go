package sanitize

import (
	"github.com/athleticlabs/fuelgate/internal/threat"
)

// sanitizeText handles free-form text fields.
func sanitizeText(value string, opts Options, s *state) string {
	// Flag what the original value looked like before anything is removed
	if opts.PreventInjection {
		if a := threat.Detect(value); !a.Clean {
			for _, name := range a.Threats {
				s.warn("potential " + name + " detected")
			}
		}
	}

	value = stripControl(value, true, s)

	if opts.PreventInjection {
		value = stripInjection(value, s)
	}
	if opts.PreventPathTraversal {
		value = stripTraversal(value, s)
	}
	if !opts.AllowUnicode {
		value = stripNonASCII(value, s)
	}

	value = truncate(value, opts.MaxLength, s)
	return applyWhitespace(value, opts, s)
}
