package generator

import (
	"fmt"
	"sort"
	"strings"

	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	"github.com/storyforge/storyforge/internal/generation/domain"
	orgdomain "github.com/storyforge/storyforge/internal/organization/domain"
)

// maxForbiddenTopics bounds the uniqueness context included in the prompt.
// Older entries contribute less signal than they cost in tokens.
const maxForbiddenTopics = 8

// maxSelectedVariables caps how many brand variables one prompt highlights.
const maxSelectedVariables = 2

// stageKey addresses the variable mapping by the (funnel stage, story stage)
// pair. Rows with an empty story stage cover items that set only a funnel
// stage.
type stageKey struct {
	funnel string
	story  string
}

// stageVariables maps a stage pair to the brand variables most worth
// highlighting there. Lookup tries the exact pair, then the funnel-only row;
// anything still unmapped falls back to a random pick.
var stageVariables = map[stageKey][]string{
	{"awareness", "problem"}:     {"audience", "mission"},
	{"awareness", "journey"}:     {"audience", "proof"},
	{"consideration", "problem"}: {"differentiator", "audience"},
	{"consideration", "journey"}: {"differentiator", "offer"},
	{"conversion", "journey"}:    {"offer", "proof"},
	{"conversion", "resolution"}: {"offer", "community"},
	{"retention", "resolution"}:  {"community", "proof"},

	{funnel: "awareness"}:     {"audience", "mission"},
	{funnel: "consideration"}: {"differentiator", "offer"},
	{funnel: "conversion"}:    {"offer", "proof"},
	{funnel: "retention"}:     {"community", "mission"},
}

type promptInput struct {
	item              *contentdomain.ContentItem
	profile           *orgdomain.BrandProfile
	uniqueness        []domain.UniquenessEntry
	selectedVariables []string
	rejectionFeedback string
}

// selectVariables decides which brand variables the prompt highlights. An
// explicit caller selection wins; otherwise the (funnel, story) stage pair
// picks, and when no row matches a seeded random draw keeps output varied.
func (g *Generator) selectVariables(explicit []string, item *contentdomain.ContentItem, profile *orgdomain.BrandProfile) []string {
	if len(explicit) > 0 {
		if len(explicit) > maxSelectedVariables {
			explicit = explicit[:maxSelectedVariables]
		}
		return explicit
	}
	if profile == nil {
		return nil
	}

	variables := profile.Variables.Data()
	if len(variables) == 0 {
		return nil
	}

	key := stageKey{
		funnel: strings.ToLower(item.FunnelStage),
		story:  strings.ToLower(item.StoryStage),
	}
	mapped, ok := stageVariables[key]
	if !ok {
		mapped = stageVariables[stageKey{funnel: key.funnel}]
	}

	var picked []string
	for _, name := range mapped {
		if _, ok := variables[name]; ok {
			picked = append(picked, name)
		}
	}
	if len(picked) > 0 {
		return picked
	}

	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)

	g.randMu.Lock()
	g.rand.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	g.randMu.Unlock()

	if len(names) > maxSelectedVariables {
		names = names[:maxSelectedVariables]
	}
	return names
}

func buildSystemPrompt(in promptInput) string {
	var b strings.Builder
	b.WriteString("You are a senior social media copywriter. ")
	b.WriteString("You write concrete, specific content with no filler.\n")

	if in.profile != nil {
		fmt.Fprintf(&b, "\nBrand: %s\n", in.profile.BrandName)
		if in.profile.Tone != "" {
			fmt.Fprintf(&b, "Tone of voice: %s\n", in.profile.Tone)
		}
		variables := in.profile.Variables.Data()
		for _, name := range in.selectedVariables {
			if value, ok := variables[name]; ok && value != "" {
				fmt.Fprintf(&b, "Brand %s: %s\n", name, value)
			}
		}
	}

	b.WriteString("\nRespond with a single JSON object inside a ```json fence. ")
	b.WriteString("Fields: title, hook, body, cta, caption, hashtags, headline, slides, platform_captions. ")
	b.WriteString("Omit fields that do not apply to the requested format.")
	return b.String()
}

// buildUserPrompt renders the per-item instruction. The forbidden-topic list
// is included only on the first attempt; retries after a validation reject
// focus the model on the rejection instead.
func buildUserPrompt(in promptInput, attempt int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write one %s post.\n", formatLabel(in.item.Format))
	if in.item.FunnelStage != "" {
		fmt.Fprintf(&b, "Funnel stage: %s.\n", in.item.FunnelStage)
	}
	if in.item.StoryStage != "" {
		fmt.Fprintf(&b, "Story arc stage: %s.\n", in.item.StoryStage)
	}
	if platforms := in.item.TargetPlatforms.Data(); len(platforms) > 0 {
		fmt.Fprintf(&b, "Target platforms: %s.\n", strings.Join(platforms, ", "))
	}

	if hint := topicHint(in); hint != "" {
		fmt.Fprintf(&b, "Suggested theme: %s.\n", hint)
	}

	writeFormatRules(&b, in.item.Format)

	if attempt == 1 && len(in.uniqueness) > 0 {
		forbidden := in.uniqueness
		if len(forbidden) > maxForbiddenTopics {
			forbidden = forbidden[len(forbidden)-maxForbiddenTopics:]
		}
		b.WriteString("\nDo NOT repeat any of these already-covered topics:\n")
		for _, entry := range forbidden {
			fmt.Fprintf(&b, "- %s\n", entry.Title)
		}
	}

	if in.rejectionFeedback != "" {
		fmt.Fprintf(&b, "\nA previous draft was rejected: %s. Fix that specifically.\n", in.rejectionFeedback)
	}

	return b.String()
}

// topicHint rotates through the brand's declared content themes so a batch
// spreads across them instead of clustering on the first.
func topicHint(in promptInput) string {
	if in.profile == nil {
		return ""
	}
	themes := in.profile.ContentThemes.Data()
	if len(themes) == 0 {
		return ""
	}
	return themes[len(in.uniqueness)%len(themes)]
}

func writeFormatRules(b *strings.Builder, format string) {
	switch format {
	case contentdomain.FormatCarousel:
		b.WriteString("Provide at least 3 slides, each a short standalone statement, plus a caption of at least 200 characters.\n")
	case contentdomain.FormatStatic:
		b.WriteString("Provide a punchy headline, supporting body copy, and a caption of at least 200 characters.\n")
	case contentdomain.FormatLongform:
		b.WriteString("Provide an opening hook and a full script body of at least 500 characters, plus a caption of at least 200 characters.\n")
	default:
		b.WriteString("Provide a hook, body, call to action, and a caption of at least 200 characters.\n")
	}
}

func formatLabel(format string) string {
	switch format {
	case contentdomain.FormatCarousel:
		return "carousel"
	case contentdomain.FormatStatic:
		return "static image"
	case contentdomain.FormatReel:
		return "short-form video"
	case contentdomain.FormatLongform:
		return "long-form video script"
	default:
		return "social media"
	}
}
