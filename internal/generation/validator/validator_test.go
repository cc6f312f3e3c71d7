package validator

import (
	"strings"
	"testing"

	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/stretchr/testify/assert"
)

func validCandidate() domain.Candidate {
	return domain.Candidate{
		Title:   "Five onboarding mistakes that silently churn users",
		Topic:   "Five onboarding mistakes that silently churn users",
		Hook:    "Most churn happens before day seven.",
		Body:    strings.Repeat("Walk through a real onboarding session and watch where people stall. ", 10),
		CTA:     "Book a teardown call this week.",
		Caption: strings.Repeat("Your onboarding is leaking users and the fix is usually boring. ", 5),
	}
}

func TestValidate_AcceptsCompleteReel(t *testing.T) {
	err := Validate(validCandidate(), contentdomain.FormatReel)
	assert.NoError(t, err)
}

func TestValidate_RejectsMissingTitle(t *testing.T) {
	c := validCandidate()
	c.Title = ""
	err := Validate(c, contentdomain.FormatReel)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestValidate_RejectsPlaceholderTitle(t *testing.T) {
	for _, title := range []string{"Untitled", "TBD", "Your Title Here"} {
		c := validCandidate()
		c.Title = title
		err := Validate(c, contentdomain.FormatReel)
		assert.Error(t, err, title)
		assert.Contains(t, err.Error(), "placeholder")
	}
}

func TestValidate_RejectsShortCaption(t *testing.T) {
	c := validCandidate()
	c.Caption = "too short"
	err := Validate(c, contentdomain.FormatReel)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "caption")
}

func TestValidate_CaptionLengthBoundaries(t *testing.T) {
	c := validCandidate()

	c.Caption = strings.Repeat("x", 150)
	err := Validate(c, contentdomain.FormatReel)
	assert.Error(t, err)
	var verr *Error
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "caption is 150 characters")

	c.Caption = strings.Repeat("x", 250)
	assert.NoError(t, Validate(c, contentdomain.FormatReel))

	c.Caption = strings.Repeat("x", MinCaptionLength-1)
	assert.Error(t, Validate(c, contentdomain.FormatReel))

	c.Caption = strings.Repeat("x", MinCaptionLength)
	assert.NoError(t, Validate(c, contentdomain.FormatReel))
}

func TestValidate_CarouselNeedsThreeSlides(t *testing.T) {
	c := validCandidate()
	c.Slides = []string{"one", "two"}
	assert.Error(t, Validate(c, contentdomain.FormatCarousel))

	c.Slides = []string{"one", "two", "three"}
	assert.NoError(t, Validate(c, contentdomain.FormatCarousel))
}

func TestValidate_StaticNeedsHeadlineAndBody(t *testing.T) {
	c := validCandidate()
	c.Headline = ""
	assert.Error(t, Validate(c, contentdomain.FormatStatic))

	c.Headline = "The onboarding audit"
	assert.NoError(t, Validate(c, contentdomain.FormatStatic))
}

func TestValidate_LongformNeedsHookAndLongBody(t *testing.T) {
	c := validCandidate()
	c.Hook = ""
	assert.Error(t, Validate(c, contentdomain.FormatLongform))

	c.Hook = "Most churn happens before day seven."
	c.Body = "short script"
	err := Validate(c, contentdomain.FormatLongform)
	assert.Error(t, err)

	c.Body = strings.Repeat("Scene by scene script copy with enough substance to publish. ", 12)
	assert.NoError(t, Validate(c, contentdomain.FormatLongform))
}
