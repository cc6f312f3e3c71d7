package server

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	sfclock "github.com/storyforge/storyforge/internal/clock"
	"github.com/storyforge/storyforge/internal/config"
	contentdomain "github.com/storyforge/storyforge/internal/contentitem/domain"
	contentrepo "github.com/storyforge/storyforge/internal/contentitem/repository"
	creditdomain "github.com/storyforge/storyforge/internal/credit/domain"
	creditservice "github.com/storyforge/storyforge/internal/credit/service"
	generationdomain "github.com/storyforge/storyforge/internal/generation/domain"
	"github.com/storyforge/storyforge/internal/generation/generator"
	generationrepo "github.com/storyforge/storyforge/internal/generation/repository"
	generationservice "github.com/storyforge/storyforge/internal/generation/service"
	"github.com/storyforge/storyforge/internal/modelcatalog"
	notificationdomain "github.com/storyforge/storyforge/internal/notification/domain"
	notificationservice "github.com/storyforge/storyforge/internal/notification/service"
	orgdomain "github.com/storyforge/storyforge/internal/organization/domain"
	orgrepo "github.com/storyforge/storyforge/internal/organization/repository"
	orgservice "github.com/storyforge/storyforge/internal/organization/service"
	"github.com/storyforge/storyforge/internal/provider/adapters"
	providerdomain "github.com/storyforge/storyforge/internal/provider/domain"
	"github.com/storyforge/storyforge/internal/provider/providertest"
	usagedomain "github.com/storyforge/storyforge/internal/usage/domain"
	usagerepo "github.com/storyforge/storyforge/internal/usage/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testStack struct {
	engine *gin.Engine
	node   *snowflake.Node
}

func newStack(t *testing.T, steps ...providertest.Step) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.BrandProfile{},
		&contentdomain.ContentItem{},
		&generationdomain.GenerationBatch{},
		&generationdomain.QueueEntry{},
		&creditdomain.CreditBalance{},
		&creditdomain.CreditTransaction{},
		&usagedomain.UsageRecord{},
		&notificationdomain.Notification{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := sfclock.NewFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	cfg := config.Config{Generation: config.GenerationConfig{
		LockTimeout:         5 * time.Minute,
		SweepInterval:       5 * time.Second,
		SweepBatchSize:      5,
		MaxAttempts:         3,
		FreeTierBatchCap:    10,
		PaidBatchCap:        50,
		RecentContextWindow: 10,
		DefaultModelID:      "sf-core-1",
	}}
	catalog := modelcatalog.NewCatalog("sf-core-1")
	fake := providertest.New(steps...).WithName("openai")

	items := contentrepo.NewRepository(db)
	usage := usagerepo.NewRepository(db)
	credits := creditservice.NewService(creditservice.ServiceParam{DB: db, Log: log, GenID: node})
	orgs := orgservice.NewService(orgservice.ServiceParam{
		DB: db, Log: log, GenID: node, Repo: orgrepo.NewRepository(db),
	})
	sink := notificationservice.NewService(notificationservice.ServiceParam{
		DB: db, Log: log, GenID: node, Cfg: cfg,
	})

	gen := generator.NewGenerator(generator.GeneratorParam{
		Log: log, GenID: node, Clock: clk,
		Rand:      rand.New(rand.NewSource(11)),
		Catalog:   catalog,
		Providers: adapters.NewRegistry(fake),
		Credits:   credits, Usage: usage, Items: items, Orgs: orgs,
	})
	genSvc := generationservice.NewService(generationservice.ServiceParam{
		Log: log, GenID: node, Clock: clk, Cfg: cfg,
		Repo: generationrepo.NewRepository(db), Items: items,
		Generator: gen, Catalog: catalog, Notifier: sink,
	})

	engine := NewEngine(log)
	NewServer(engine, ServerParam{
		Log: log, Cfg: cfg, GenID: node,
		Generation: genSvc, Orgs: orgs, Items: items,
		Credits: credits, Usage: usage,
	})

	return &testStack{engine: engine, node: node}
}

func (ts *testStack) do(t *testing.T, method, path, orgID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != "" {
		req.Header.Set(HeaderOrg, orgID)
		req.Header.Set(HeaderUser, ts.node.Generate().String())
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func completionStep(title string) providertest.Step {
	caption := strings.Repeat("A long caption that comfortably clears the minimum publishing length for this test. ", 3)
	return providertest.Step{Response: providerdomain.CompletionResponse{
		Text: "```json\n{\"title\": \"" + title + "\", \"hook\": \"h\", \"body\": \"b\", " +
			"\"cta\": \"c\", \"caption\": \"" + caption + "\"}\n```",
		InputTokens:  100,
		OutputTokens: 80,
	}}
}

func TestAPI_FullGenerationFlow(t *testing.T) {
	ts := newStack(t, completionStep("Topic one"), completionStep("Topic two"))

	rec := ts.do(t, http.MethodPost, "/v1/organizations", "", gin.H{"name": "Acme Fitness"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var org struct {
		ID string `json:"id"`
	}
	decode(t, rec, &org)

	rec = ts.do(t, http.MethodPut, "/v1/brand-profile", org.ID, gin.H{
		"brand_name":     "Acme Fitness",
		"tone":           "direct",
		"variables":      gin.H{"audience": "busy parents"},
		"content_themes": []string{"habit building"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/brand-profile", org.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Fitness")

	itemIDs := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, "/v1/content-items", org.ID, gin.H{
			"format":           "reel",
			"funnel_stage":     "awareness",
			"target_platforms": []string{"instagram"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		var item struct {
			ID snowflake.ID `json:"id"`
		}
		decode(t, rec, &item)
		itemIDs = append(itemIDs, item.ID.String())
	}

	rec = ts.do(t, http.MethodPost, "/v1/generation/batches", org.ID, gin.H{"item_ids": itemIDs})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var enq struct {
		BatchID       snowflake.ID `json:"batch_id"`
		Reference     string       `json:"reference"`
		AcceptedCount int          `json:"accepted_count"`
	}
	decode(t, rec, &enq)
	assert.Equal(t, 2, enq.AcceptedCount)
	assert.NotEmpty(t, enq.Reference)

	batchPath := "/v1/generation/batches/" + enq.BatchID.String()
	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, batchPath+"/process", org.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "true")
	}

	rec = ts.do(t, http.MethodGet, batchPath, org.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status generationdomain.BatchStatusResponse
	decode(t, rec, &status)
	assert.Equal(t, generationdomain.BatchStatusCompleted, status.Status)
	assert.Equal(t, 100, status.Percentage)
	assert.Equal(t, 2, status.CompletedItems)

	rec = ts.do(t, http.MethodGet, "/v1/usage", org.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "content_generation")

	// terminal batches reject cancellation
	rec = ts.do(t, http.MethodPost, batchPath+"/cancel", org.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_RequiresOrgHeader(t *testing.T) {
	ts := newStack(t)

	rec := ts.do(t, http.MethodGet, "/v1/generation/batches", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_UnknownBatchIsNotFound(t *testing.T) {
	ts := newStack(t)

	rec := ts.do(t, http.MethodPost, "/v1/organizations", "", gin.H{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var org struct {
		ID string `json:"id"`
	}
	decode(t, rec, &org)

	rec = ts.do(t, http.MethodGet, "/v1/generation/batches/"+ts.node.Generate().String(), org.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_EnqueueValidation(t *testing.T) {
	ts := newStack(t)

	rec := ts.do(t, http.MethodPost, "/v1/organizations", "", gin.H{"name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var org struct {
		ID string `json:"id"`
	}
	decode(t, rec, &org)

	rec = ts.do(t, http.MethodPost, "/v1/generation/batches", org.ID, gin.H{"item_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/generation/batches", org.ID, gin.H{"item_ids": []string{"not-a-snowflake"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/content-items", org.ID, gin.H{"format": "hologram"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
