// Package validator decides whether a parsed candidate is acceptable for
// commit. It is deterministic and performs no I/O; rejection reasons feed
// retry bookkeeping and logs, never user-facing errors.
package validator

import (
	"fmt"
	"strings"

	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/internal/generation/domain"
)

const (
	MinTitleLength    = 4
	MinCaptionLength  = 200
	MinBodyLength     = 80
	MinLongformBody   = 500
	MinCarouselSlides = 3
)

// placeholders the model sometimes echoes back instead of real copy.
var placeholderTitles = map[string]struct{}{
	"untitled":          {},
	"title":             {},
	"topic":             {},
	"your title here":   {},
	"insert title":      {},
	"n/a":               {},
	"tbd":               {},
	"placeholder":       {},
	"generated content": {},
}

// Error carries the human-readable rejection reason.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func reject(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Validate returns nil when the candidate may be committed, or an *Error
// naming what is missing.
func Validate(c domain.Candidate, format string) error {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return reject("title is missing")
	}
	if len(title) < MinTitleLength {
		return reject("title %q is under %d characters", title, MinTitleLength)
	}
	if _, ok := placeholderTitles[strings.ToLower(title)]; ok {
		return reject("title %q is a placeholder", title)
	}

	caption := strings.TrimSpace(c.Caption)
	if len(caption) < MinCaptionLength {
		return reject("caption is %d characters, minimum is %d", len(caption), MinCaptionLength)
	}

	switch format {
	case contentdomain.FormatCarousel:
		if len(c.Slides) < MinCarouselSlides {
			return reject("carousel has %d slides, minimum is %d", len(c.Slides), MinCarouselSlides)
		}
	case contentdomain.FormatStatic:
		if strings.TrimSpace(c.Headline) == "" {
			return reject("static post is missing a headline")
		}
		if len(strings.TrimSpace(c.Body)) < MinBodyLength {
			return reject("static post body is under %d characters", MinBodyLength)
		}
	case contentdomain.FormatLongform:
		if strings.TrimSpace(c.Hook) == "" {
			return reject("long-form script is missing a hook")
		}
		if len(strings.TrimSpace(c.Body)) < MinLongformBody {
			return reject("long-form script body is under %d characters", MinLongformBody)
		}
	}

	return nil
}
