// Package generator produces one validated content item per call: it builds
// the prompt from the brand profile, invokes the completion provider, parses
// and validates the output, persists it, and meters usage.
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	sfclock "github.com/storyforge/storyforge/internal/clock"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	"github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/internal/generation/parser"
	"github.com/storyforge/storyforge/internal/generation/validator"
	"github.com/storyforge/storyforge/internal/modelcatalog"
	"github.com/storyforge/storyforge/internal/observability/metrics"
	orgdomain "github.com/storyforge/storyforge/internal/organization/domain"
	"github.com/storyforge/storyforge/internal/orgcontext"
	"github.com/storyforge/storyforge/internal/provider/adapters"
	providerdomain "github.com/storyforge/storyforge/internal/provider/domain"
	usagedomain "github.com/storyforge/storyforge/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// maxInternalAttempts bounds the parse-and-validate loop inside one call.
// Queue-level retries are accounted separately on the entry.
const maxInternalAttempts = 3

type GeneratorParam struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     sfclock.Clock
	Rand      *rand.Rand
	Catalog   *modelcatalog.Catalog
	Providers *adapters.Registry
	Credits   creditdomain.Service
	Usage     usagedomain.Repository
	Items     contentdomain.Repository
	Orgs      orgdomain.Service
}

type Generator struct {
	log       *zap.Logger
	genID     *snowflake.Node
	clock     sfclock.Clock
	catalog   *modelcatalog.Catalog
	providers *adapters.Registry
	credits   creditdomain.Service
	usage     usagedomain.Repository
	items     contentdomain.Repository
	orgs      orgdomain.Service

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewGenerator(p GeneratorParam) domain.Generator {
	return &Generator{
		log:       p.Log.Named("generation.generator"),
		genID:     p.GenID,
		clock:     p.Clock,
		rand:      p.Rand,
		catalog:   p.Catalog,
		providers: p.Providers,
		credits:   p.Credits,
		usage:     p.Usage,
		items:     p.Items,
		orgs:      p.Orgs,
	}
}

func (g *Generator) GenerateSingleItem(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	ctx = orgcontext.WithOrgID(ctx, req.OrgID)

	item, err := g.items.GetByID(ctx, req.OrgID, req.ContentItemID)
	if err != nil {
		return nil, domain.NewItemError("load_content_item", true, err)
	}
	if item == nil {
		return nil, domain.NewItemError("content_item_not_found", false, contentdomain.ErrItemNotFound)
	}

	profile, err := g.orgs.GetBrandProfile(ctx)
	if err != nil {
		if err == orgdomain.ErrProfileNotFound {
			// Profiles are optional; prompts fall back to generic copy.
			profile = nil
		} else {
			return nil, domain.NewItemError("load_brand_profile", true, err)
		}
	}

	org, err := g.orgs.GetByID(ctx, req.OrgID.String())
	if err != nil {
		if err == orgdomain.ErrOrgNotFound || err == orgdomain.ErrInvalidOrganization {
			return nil, domain.NewItemError("organization_not_found", false, err)
		}
		return nil, domain.NewItemError("load_organization", true, err)
	}

	model, err := g.catalog.Resolve(req.ModelOverride, org.DefaultModelID)
	if err != nil {
		return nil, domain.NewItemError("resolve_model", false, err)
	}

	provider, err := g.providers.Get(model.Provider)
	if err != nil {
		return nil, domain.NewItemError("resolve_provider", false, err)
	}

	prompt := promptInput{
		item:              item,
		profile:           profile,
		uniqueness:        req.Uniqueness,
		selectedVariables: g.selectVariables(req.SelectedVariables, item, profile),
		rejectionFeedback: req.RejectionFeedback,
	}

	// Pre-check before any spend: the estimate assumes the model fills its
	// output window, so a pass here cannot be overrun by the actual debit.
	estimate := g.credits.CalculateCreditCost(model, estimateTokens(buildUserPrompt(prompt, 1)), model.MaxOutputTokens)
	if estimate > 0 {
		check, err := g.credits.CheckCredits(ctx, req.OrgID, estimate, req.UserID)
		if err != nil {
			return nil, domain.NewItemError("credit_check", true, err)
		}
		if !check.HasCredits {
			return nil, domain.NewItemError("insufficient_credits", false, creditdomain.ErrInsufficientCredits)
		}
	}

	var (
		candidate    domain.Candidate
		inputTokens  int
		outputTokens int
		lastReason   string
	)

	validated := false
	for attempt := 1; attempt <= maxInternalAttempts; attempt++ {
		prompt.rejectionFeedback = joinFeedback(req.RejectionFeedback, lastReason)

		callCtx, cancel := context.WithTimeout(ctx, model.RequestTimeout)
		start := time.Now()
		resp, err := provider.Complete(callCtx, providerdomain.CompletionRequest{
			ModelID:      model.ID,
			SystemPrompt: buildSystemPrompt(prompt),
			Prompt:       buildUserPrompt(prompt, attempt),
			MaxTokens:    model.MaxOutputTokens,
			Temperature:  model.Temperature,
		})
		cancel()

		if err != nil {
			metrics.Generation().ObserveProviderCall(model.Provider, "error", time.Since(start))
			kind := providerdomain.KindOf(err)
			g.log.Warn("provider call failed",
				zap.String("provider", model.Provider),
				zap.String("kind", string(kind)),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if providerdomain.IsExhausted(err) {
				return nil, domain.NewItemError("provider_exhausted", false, err)
			}
			if kind == providerdomain.ErrKindInvalidRequest {
				return nil, domain.NewItemError("provider_rejected_request", false, err)
			}
			return nil, domain.NewItemError("provider_call_failed", true, err)
		}
		metrics.Generation().ObserveProviderCall(model.Provider, "ok", time.Since(start))

		inputTokens += resp.InputTokens
		outputTokens += resp.OutputTokens

		candidate = parser.Parse(resp.Text)
		if verr := validator.Validate(candidate, item.Format); verr != nil {
			metrics.Generation().IncValidationFailure(item.Format)
			lastReason = verr.Error()
			g.log.Info("candidate rejected",
				zap.Stringer("content_item_id", req.ContentItemID),
				zap.Int("attempt", attempt),
				zap.String("reason", lastReason))
			continue
		}
		validated = true
		break
	}

	if !validated {
		return nil, domain.NewItemError(
			fmt.Sprintf("validation_failed_after_%d_attempts: %s", maxInternalAttempts, lastReason),
			true, nil)
	}

	content := buildGeneratedContent(candidate, item)
	now := g.clock.Now()
	if err := g.items.ApplyGeneratedContent(ctx, req.OrgID, req.ContentItemID, content, now); err != nil {
		if err == contentdomain.ErrWriteRejected {
			return nil, domain.NewItemError("content_write_rejected", false, err)
		}
		return nil, domain.NewItemError("content_write_failed", true, err)
	}

	credits := g.credits.CalculateCreditCost(model, inputTokens, outputTokens)
	record := &usagedomain.UsageRecord{
		ID:             g.genID.Generate(),
		OrgID:          req.OrgID,
		UserID:         req.UserID,
		Feature:        usagedomain.FeatureContentGeneration,
		ModelID:        model.ID,
		Provider:       model.Provider,
		FreeTier:       model.FreeTier,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		CreditsCharged: credits,
		CreatedAt:      now,
	}
	if err := g.usage.Insert(ctx, record); err != nil {
		// The content committed; losing the usage row is an accounting gap,
		// not a generation failure.
		g.log.Error("usage record insert failed",
			zap.Stringer("content_item_id", req.ContentItemID),
			zap.Error(err))
	} else if credits > 0 {
		memo := fmt.Sprintf("content generation %s (%s)", req.ContentItemID, model.ID)
		if err := g.credits.DeductCredits(ctx, req.OrgID, req.UserID, credits, record.ID, memo); err != nil {
			g.log.Error("credit debit failed after commit",
				zap.Stringer("usage_record_id", record.ID),
				zap.Float64("credits", credits),
				zap.Error(err))
		}
	}

	return &domain.GenerateResult{
		Content: content,
		Entry: domain.UniquenessEntry{
			Title: candidate.Title,
			Hook:  candidate.Hook,
			Topic: candidate.Topic,
		},
		ModelID:      model.ID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Credits:      credits,
	}, nil
}

// buildGeneratedContent maps a validated candidate onto the persistence
// shape, deriving per-platform caption variants for the item's targets.
func buildGeneratedContent(c domain.Candidate, item *contentdomain.ContentItem) contentdomain.GeneratedContent {
	body := c.Body
	if item.Format == contentdomain.FormatStatic && c.Headline != "" {
		body = c.Headline + "\n\n" + c.Body
	}

	return contentdomain.GeneratedContent{
		Topic:            c.Topic,
		Hook:             c.Hook,
		Body:             body,
		CTA:              c.CTA,
		Caption:          c.Caption,
		Hashtags:         c.Hashtags,
		Slides:           c.Slides,
		PlatformVariants: buildPlatformVariants(c, item.TargetPlatforms.Data()),
	}
}

func joinFeedback(previous, latest string) string {
	switch {
	case previous == "":
		return latest
	case latest == "":
		return previous
	default:
		return previous + "; " + latest
	}
}

// estimateTokens approximates the token count of a prompt for the credit
// pre-check. Four characters per token overestimates slightly for English.
func estimateTokens(prompt string) int {
	return len(prompt)/4 + 1
}
