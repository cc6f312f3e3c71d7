package generator

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	sfclock "github.com/storyforge/storyforge/internal/clock"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	contentrepo "github.com/storyforge/storyforge/internal/contentitem/repository"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	creditservice "github.com/storyforge/storyforge/internal/credit/service"
	"github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/internal/modelcatalog"
	orgdomain "github.com/storyforge/storyforge/internal/organization/domain"
	"github.com/storyforge/storyforge/internal/provider/adapters"
	providerdomain "github.com/storyforge/storyforge/internal/provider/domain"
	"github.com/storyforge/storyforge/internal/provider/providertest"
	usagedomain "github.com/storyforge/storyforge/internal/usage/domain"
	usagerepo "github.com/storyforge/storyforge/internal/usage/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type orgStub struct {
	org     orgdomain.OrganizationResponse
	profile *orgdomain.BrandProfile
}

func (s *orgStub) Create(ctx context.Context, req orgdomain.CreateOrganizationRequest) (*orgdomain.OrganizationResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *orgStub) GetByID(ctx context.Context, id string) (*orgdomain.OrganizationResponse, error) {
	org := s.org
	return &org, nil
}

func (s *orgStub) GetBrandProfile(ctx context.Context) (*orgdomain.BrandProfile, error) {
	if s.profile == nil {
		return nil, orgdomain.ErrProfileNotFound
	}
	return s.profile, nil
}

func (s *orgStub) UpsertBrandProfile(ctx context.Context, req orgdomain.BrandProfileRequest) (*orgdomain.BrandProfile, error) {
	return nil, errors.New("not implemented")
}

type fixture struct {
	gen     *Generator
	db      *gorm.DB
	node    *snowflake.Node
	items   contentdomain.Repository
	usage   usagedomain.Repository
	credits creditdomain.Service
	fake    *providertest.Fake
	orgID   snowflake.ID
	userID  snowflake.ID
}

func setup(t *testing.T, steps ...providertest.Step) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&contentdomain.ContentItem{},
		&creditdomain.CreditBalance{},
		&creditdomain.CreditTransaction{},
		&usagedomain.UsageRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	items := contentrepo.NewRepository(db)
	usage := usagerepo.NewRepository(db)
	credits := creditservice.NewService(creditservice.ServiceParam{DB: db, Log: log, GenID: node})
	fake := providertest.New(steps...).WithName("openai")

	orgID := node.Generate()
	stub := &orgStub{
		org: orgdomain.OrganizationResponse{ID: orgID.String(), Name: "Acme"},
		profile: &orgdomain.BrandProfile{
			OrgID:     orgID,
			BrandName: "Acme Fitness",
			Tone:      "direct, encouraging",
			Variables: datatypes.NewJSONType(map[string]string{
				"audience": "busy parents",
				"offer":    "12-week coaching program",
			}),
			ContentThemes: datatypes.NewJSONType([]string{"habit building", "meal prep"}),
		},
	}

	gen := NewGenerator(GeneratorParam{
		Log:       log,
		GenID:     node,
		Clock:     sfclock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		Rand:      rand.New(rand.NewSource(42)),
		Catalog:   modelcatalog.NewCatalog("sf-core-1"),
		Providers: adapters.NewRegistry(fake),
		Credits:   credits,
		Usage:     usage,
		Items:     items,
		Orgs:      stub,
	}).(*Generator)

	return &fixture{
		gen:     gen,
		db:      db,
		node:    node,
		items:   items,
		usage:   usage,
		credits: credits,
		fake:    fake,
		orgID:   orgID,
		userID:  node.Generate(),
	}
}

func (f *fixture) seedItem(t *testing.T, format string) snowflake.ID {
	t.Helper()
	item := &contentdomain.ContentItem{
		ID:              f.node.Generate(),
		OrgID:           f.orgID,
		Format:          format,
		FunnelStage:     "awareness",
		StoryStage:      "problem",
		TargetPlatforms: datatypes.NewJSONType([]string{"instagram", "x"}),
		Status:          contentdomain.StatusDraft,
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item.ID
}

func validResponse(title string) providertest.Step {
	caption := strings.Repeat("Every rep you skip is a vote for the old you, and the fix is smaller than you think. ", 4)
	return providertest.Step{Response: providerdomain.CompletionResponse{
		Text: "```json\n{\"title\": \"" + title + "\", \"hook\": \"You do not need more time, you need a smaller plan\", " +
			"\"body\": \"Pick one habit and attach it to an anchor you already have. Repeat for two weeks before adding anything.\", " +
			"\"cta\": \"Save this for Monday\", \"caption\": \"" + caption + "\"}\n```",
		InputTokens:  420,
		OutputTokens: 310,
	}}
}

func (f *fixture) request(itemID snowflake.ID) domain.GenerateRequest {
	return domain.GenerateRequest{
		OrgID:         f.orgID,
		UserID:        f.userID,
		ContentItemID: itemID,
	}
}

func TestGenerateSingleItem_FreeTierHappyPath(t *testing.T) {
	f := setup(t, validResponse("One habit at a time"))
	itemID := f.seedItem(t, contentdomain.FormatReel)

	result, err := f.gen.GenerateSingleItem(context.Background(), f.request(itemID))
	require.NoError(t, err)
	assert.Equal(t, "One habit at a time", result.Entry.Title)
	assert.Equal(t, "sf-core-1", result.ModelID)
	assert.Zero(t, result.Credits)

	item, err := f.items.GetByID(context.Background(), f.orgID, itemID)
	require.NoError(t, err)
	assert.Equal(t, contentdomain.StatusScripted, item.Status)
	assert.Equal(t, "One habit at a time", item.Topic)
	assert.NotNil(t, item.GeneratedAt)

	variants := item.PlatformVariants.Data()
	require.Contains(t, variants, "x")
	assert.LessOrEqual(t, len([]rune(variants["x"].Caption)), 280)

	records, err := f.usage.ListByOrg(context.Background(), f.orgID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 420, records[0].InputTokens)
	assert.Equal(t, 310, records[0].OutputTokens)
	assert.True(t, records[0].FreeTier)
	assert.Zero(t, records[0].CreditsCharged)
}

func TestGenerateSingleItem_RetriesAfterValidationReject(t *testing.T) {
	bad := providertest.Step{Response: providerdomain.CompletionResponse{
		Text:         "```json\n{\"title\": \"Too thin\", \"caption\": \"short\"}\n```",
		InputTokens:  100,
		OutputTokens: 50,
	}}
	f := setup(t, bad, validResponse("Second draft lands"))
	itemID := f.seedItem(t, contentdomain.FormatReel)

	result, err := f.gen.GenerateSingleItem(context.Background(), f.request(itemID))
	require.NoError(t, err)
	assert.Equal(t, "Second draft lands", result.Entry.Title)
	assert.Equal(t, 2, f.fake.Calls())

	// the retry prompt carries the rejection reason
	retryPrompt := f.fake.Requests[1].Prompt
	assert.Contains(t, retryPrompt, "rejected")

	// both attempts are metered
	records, err := f.usage.ListByOrg(context.Background(), f.orgID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 520, records[0].InputTokens)
	assert.Equal(t, 360, records[0].OutputTokens)
}

func TestGenerateSingleItem_ValidationExhaustedIsRetryable(t *testing.T) {
	bad := providertest.Step{Response: providerdomain.CompletionResponse{
		Text: "no structured content at all",
	}}
	f := setup(t, bad)
	itemID := f.seedItem(t, contentdomain.FormatReel)

	_, err := f.gen.GenerateSingleItem(context.Background(), f.request(itemID))
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, maxInternalAttempts, f.fake.Calls())

	item, _ := f.items.GetByID(context.Background(), f.orgID, itemID)
	assert.Equal(t, contentdomain.StatusDraft, item.Status)
}

func TestGenerateSingleItem_QuotaExhaustedIsNonRetryable(t *testing.T) {
	f := setup(t, providertest.Step{
		Err: providerdomain.NewError(providerdomain.ErrKindQuotaExhausted, "quota spent", nil),
	})
	itemID := f.seedItem(t, contentdomain.FormatReel)

	_, err := f.gen.GenerateSingleItem(context.Background(), f.request(itemID))
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, 1, f.fake.Calls())
}

func TestGenerateSingleItem_TransientProviderErrorIsRetryable(t *testing.T) {
	f := setup(t, providertest.Step{
		Err: providerdomain.NewError(providerdomain.ErrKindTransient, "upstream 503", nil),
	})
	itemID := f.seedItem(t, contentdomain.FormatReel)

	_, err := f.gen.GenerateSingleItem(context.Background(), f.request(itemID))
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestGenerateSingleItem_PaidModelBlockedWithoutCredits(t *testing.T) {
	f := setup(t, validResponse("Never reached"))
	itemID := f.seedItem(t, contentdomain.FormatReel)

	req := f.request(itemID)
	req.ModelOverride = "sf-pro-1"

	_, err := f.gen.GenerateSingleItem(context.Background(), req)
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
	assert.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)
	assert.Zero(t, f.fake.Calls())
}

func TestGenerateSingleItem_PaidModelDebitsCredits(t *testing.T) {
	f := setup(t, validResponse("Paid tier draft"))
	itemID := f.seedItem(t, contentdomain.FormatReel)
	require.NoError(t, f.credits.GrantCredits(context.Background(), f.orgID, f.userID, 100, "test grant"))

	req := f.request(itemID)
	req.ModelOverride = "sf-pro-1"

	result, err := f.gen.GenerateSingleItem(context.Background(), req)
	require.NoError(t, err)

	// sf-pro-1: 1.0/k input, 3.0/k output
	assert.InDelta(t, 0.42+0.93, result.Credits, 0.0001)

	var balance creditdomain.CreditBalance
	require.NoError(t, f.db.Where("org_id = ?", f.orgID).First(&balance).Error)
	assert.InDelta(t, 100-result.Credits, balance.Balance, 0.0001)

	records, err := f.usage.ListByOrg(context.Background(), f.orgID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, result.Credits, records[0].CreditsCharged, 0.0001)
}

func TestGenerateSingleItem_MissingItemIsNonRetryable(t *testing.T) {
	f := setup(t, validResponse("unused"))

	_, err := f.gen.GenerateSingleItem(context.Background(), f.request(f.node.Generate()))
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
	assert.Zero(t, f.fake.Calls())
}

func TestGenerateSingleItem_ForbiddenTopicsOnFirstAttemptOnly(t *testing.T) {
	bad := providertest.Step{Response: providerdomain.CompletionResponse{
		Text: "```json\n{\"title\": \"Too thin\", \"caption\": \"short\"}\n```",
	}}
	f := setup(t, bad, validResponse("Fresh angle"))
	itemID := f.seedItem(t, contentdomain.FormatReel)

	req := f.request(itemID)
	req.Uniqueness = []domain.UniquenessEntry{
		{Title: "Meal prep myths", Topic: "Meal prep myths"},
		{Title: "Morning routines", Topic: "Morning routines"},
	}

	_, err := f.gen.GenerateSingleItem(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, f.fake.Requests, 2)
	assert.Contains(t, f.fake.Requests[0].Prompt, "Meal prep myths")
	assert.NotContains(t, f.fake.Requests[1].Prompt, "Meal prep myths")
}
