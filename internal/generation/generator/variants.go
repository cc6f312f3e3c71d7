package generator

import (
	"strings"
	"unicode/utf8"

	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/internal/generation/domain"
)

const ellipsis = "…"

// platformCaptionLimits are the published caption ceilings per platform.
var platformCaptionLimits = map[string]int{
	"instagram": 2200,
	"tiktok":    2200,
	"x":         280,
	"linkedin":  3000,
	"youtube":   5000,
	"facebook":  63206,
}

// buildPlatformVariants derives one caption per target platform, preferring
// the model's platform-specific caption and truncating to the platform limit.
func buildPlatformVariants(c domain.Candidate, platforms []string) map[string]contentdomain.PlatformVariant {
	if len(platforms) == 0 {
		return nil
	}

	variants := make(map[string]contentdomain.PlatformVariant, len(platforms))
	for _, platform := range platforms {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}

		caption := c.Caption
		if specific, ok := c.PlatformCaptions[platform]; ok && strings.TrimSpace(specific) != "" {
			caption = strings.TrimSpace(specific)
		}
		if limit, ok := platformCaptionLimits[platform]; ok {
			caption = truncateCaption(caption, limit)
		}

		variants[platform] = contentdomain.PlatformVariant{
			Caption:  caption,
			Hashtags: c.Hashtags,
		}
	}
	return variants
}

// truncateCaption enforces limit in runes, cutting on a word boundary where
// one exists near the end and appending an ellipsis.
func truncateCaption(caption string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(caption) <= limit {
		return caption
	}

	runes := []rune(caption)
	cut := limit - utf8.RuneCountInString(ellipsis)
	if cut < 1 {
		cut = 1
	}
	truncated := string(runes[:cut])

	// back up to the last space unless doing so loses most of the text
	if idx := strings.LastIndexByte(truncated, ' '); idx > cut/2 {
		truncated = truncated[:idx]
	}
	return strings.TrimRight(truncated, " ") + ellipsis
}
