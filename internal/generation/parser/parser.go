// Package parser turns raw model output into a structured candidate. Models
// are asked for a fenced JSON block but frequently return prose around it,
// loose fences, or bare JSON, so extraction tries progressively weaker
// strategies before giving up.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/storyforge/storyforge/internal/generation/domain"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	looseFenceRe = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
)

// Parse extracts a candidate from raw. It never returns an error: when no
// JSON object can be recovered it returns a minimal candidate carrying the
// raw text as body, which the validator will reject with a useful reason.
func Parse(raw string) domain.Candidate {
	for _, payload := range extract(raw) {
		var c domain.Candidate
		if err := json.Unmarshal([]byte(payload), &c); err == nil {
			normalize(&c)
			return c
		}
	}

	c := domain.Candidate{Body: strings.TrimSpace(raw)}
	normalize(&c)
	return c
}

// extract returns payload candidates strongest-first: a ```json fence, then
// any fence holding an object, then the outermost brace span of the text.
func extract(raw string) []string {
	var payloads []string
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		payloads = append(payloads, m[1])
	}
	if m := looseFenceRe.FindStringSubmatch(raw); m != nil {
		payloads = append(payloads, m[1])
	}
	if span := braceSpan(raw); span != "" {
		payloads = append(payloads, span)
	}
	return payloads
}

// braceSpan returns the substring from the first '{' to its matching '}',
// tracking string literals so braces inside copy text do not truncate it.
func braceSpan(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}

// normalize fills aliased and derivable fields so downstream code reads one
// canonical shape.
func normalize(c *domain.Candidate) {
	c.Title = strings.TrimSpace(c.Title)
	c.Topic = strings.TrimSpace(c.Topic)
	c.Hook = strings.TrimSpace(c.Hook)
	c.Body = strings.TrimSpace(c.Body)
	c.CTA = strings.TrimSpace(c.CTA)
	c.Caption = strings.TrimSpace(c.Caption)
	c.Headline = strings.TrimSpace(c.Headline)

	// title and topic are aliases in the prompt contract
	if c.Title == "" {
		c.Title = c.Topic
	}
	if c.Topic == "" {
		c.Topic = c.Title
	}

	if c.Caption == "" {
		c.Caption = reconstructCaption(c)
	}

	cleaned := c.Hashtags[:0]
	for _, tag := range c.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		cleaned = append(cleaned, tag)
	}
	c.Hashtags = cleaned
}

// reconstructCaption builds a caption when the model omitted one, preferring
// the longest platform-specific variant, then stitched hook/body/cta copy.
func reconstructCaption(c *domain.Candidate) string {
	longest := ""
	for _, variant := range c.PlatformCaptions {
		variant = strings.TrimSpace(variant)
		if len(variant) > len(longest) {
			longest = variant
		}
	}
	if longest != "" {
		return longest
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{c.Hook, c.Body, c.CTA} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n\n")
}
