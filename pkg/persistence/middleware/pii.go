package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/strata/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

// DefaultPIIPatterns match the facility contact fields.
var DefaultPIIPatterns = []string{"^phone$", "^email$", "^street$"}

type piiMiddleware struct {
	next     ports.BlobSink
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the values of JSON object
// keys matching one of patterns. Non-JSON bodies are rejected.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.BlobSink) ports.BlobSink {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Put(ctx context.Context, key string, body []byte, contentType string) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("cannot mask non-JSON blob %s: %w", key, err)
	}
	masked, err := json.MarshalIndent(maskValue(doc, m.patterns), "", "  ")
	if err != nil {
		return err
	}
	return m.next.Put(ctx, key, masked, contentType)
}

// maskValue walks a decoded JSON document. Decoded values are fresh, so they
// are masked in place.
func maskValue(v any, patterns []*regexp.Regexp) any {
	switch t := v.(type) {
	case map[string]any:
		for k, sub := range t {
			if matchAny(k, patterns) && sub != nil {
				if _, nested := sub.(map[string]any); !nested {
					t[k] = Mask
					continue
				}
			}
			t[k] = maskValue(sub, patterns)
		}
	case []any:
		for i, sub := range t {
			t[i] = maskValue(sub, patterns)
		}
	}
	return v
}

func matchAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
