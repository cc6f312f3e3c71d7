package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_FencedJSONBlock(t *testing.T) {
	raw := "Here is your content:\n```json\n{\"title\": \"Stop discounting\", \"hook\": \"Discounts train buyers to wait\", \"caption\": \"Full caption copy\"}\n```\nLet me know if you want changes."

	c := Parse(raw)
	assert.Equal(t, "Stop discounting", c.Title)
	assert.Equal(t, "Stop discounting", c.Topic)
	assert.Equal(t, "Discounts train buyers to wait", c.Hook)
	assert.Equal(t, "Full caption copy", c.Caption)
}

func TestParse_LooseFence(t *testing.T) {
	raw := "```\n{\"topic\": \"Pricing psychology\", \"body\": \"copy\"}\n```"

	c := Parse(raw)
	assert.Equal(t, "Pricing psychology", c.Title)
	assert.Equal(t, "Pricing psychology", c.Topic)
}

func TestParse_BareObject(t *testing.T) {
	raw := "Sure! {\"title\": \"Bare JSON\", \"caption\": \"caption text\"} hope that helps"

	c := Parse(raw)
	assert.Equal(t, "Bare JSON", c.Title)
	assert.Equal(t, "caption text", c.Caption)
}

func TestParse_BracesInsideStrings(t *testing.T) {
	raw := "{\"title\": \"Use {curly} placeholders\", \"body\": \"text with } brace\"}"

	c := Parse(raw)
	assert.Equal(t, "Use {curly} placeholders", c.Title)
	assert.Equal(t, "text with } brace", c.Body)
}

func TestParse_PrefersFencedOverBare(t *testing.T) {
	raw := "{\"title\": \"outer\"}\n```json\n{\"title\": \"fenced\"}\n```"

	c := Parse(raw)
	assert.Equal(t, "fenced", c.Title)
}

func TestParse_UnparseableFallsBackToBody(t *testing.T) {
	raw := "no json here, just prose the model produced"

	c := Parse(raw)
	assert.Empty(t, c.Title)
	assert.Equal(t, raw, c.Body)
}

func TestParse_CaptionFromPlatformVariant(t *testing.T) {
	raw := "{\"title\": \"T1\", \"platform_captions\": {\"x\": \"short\", \"instagram\": \"the much longer instagram caption\"}}"

	c := Parse(raw)
	assert.Equal(t, "the much longer instagram caption", c.Caption)
}

func TestParse_CaptionStitchedFromParts(t *testing.T) {
	raw := "{\"title\": \"T1\", \"hook\": \"the hook\", \"body\": \"the body\", \"cta\": \"the cta\"}"

	c := Parse(raw)
	assert.Equal(t, "the hook\n\nthe body\n\nthe cta", c.Caption)
}

func TestParse_NormalizesHashtags(t *testing.T) {
	raw := "{\"title\": \"T1\", \"hashtags\": [\"growth\", \"#saas\", \"  \", \"founder\"]}"

	c := Parse(raw)
	assert.Equal(t, []string{"#growth", "#saas", "#founder"}, c.Hashtags)
}
