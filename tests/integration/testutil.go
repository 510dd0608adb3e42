//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meditwin-platform/meditwin/internal/api"
	"github.com/meditwin-platform/meditwin/internal/auth"
	"github.com/meditwin-platform/meditwin/internal/biomarkers"
	"github.com/meditwin-platform/meditwin/internal/compressor"
	"github.com/meditwin-platform/meditwin/internal/config"
	"github.com/meditwin-platform/meditwin/internal/documents"
	"github.com/meditwin-platform/meditwin/internal/extraction"
	"github.com/meditwin-platform/meditwin/internal/feedback"
	"github.com/meditwin-platform/meditwin/internal/inference"
	"github.com/meditwin-platform/meditwin/internal/memory"
	"github.com/meditwin-platform/meditwin/internal/orchestrator"
)

const tokenSecret = "integration-test-secret-32-chars!!"

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Tracker     *feedback.Tracker
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "meditwin_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/meditwin_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Stub AI backends
	extractionStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]any{
				{"span_text": "BRCA1", "label": "GENE", "score": 0.99},
				{"span_text": "TP53", "label": "GENE", "score": 0.97},
			},
		})
	}))
	t.Cleanup(extractionStub.Close)

	inferenceStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"text": "ANALYSIS: Values look stable.\n" +
				"INFERENCES: No acute change.\n" +
				"RECOMMENDATIONS: Keep the current plan.\n" +
				"CONFIDENCE: 85%\nSEVERITY: good\nPRIORITY: routine",
		})
	}))
	t.Cleanup(inferenceStub.Close)

	// Wire services the way main does, NATS disabled
	pipelineCfg := config.PipelineConfig{
		TokenBudget:         300,
		RecentTurns:         6,
		CompactionThreshold: 10,
		ShortTermTTLSec:     3600,
		SimilarFindings:     3,
		SimilarityThreshold: 0.7,
	}
	inferenceCfg := config.InferenceConfig{
		BaseURL:             inferenceStub.URL,
		Timeout:             5 * time.Second,
		DefaultConfidence:   75,
		DefaultSeverity:     "Moderate",
		DefaultPriority:     "Medium",
		ElevatedSeverity:    "Concerning",
		BiasElevationCutoff: -0.3,
	}

	memoryRepo := memory.NewPostgresRepository(pool)
	shortTerm := memory.NewShortTermStore(redisClient)
	memorySvc := memory.NewService(memoryRepo, shortTerm, pipelineCfg)
	memoryHandler := memory.NewHandler(memorySvc)

	biomarkerRepo := biomarkers.NewPostgresRepository(pool)
	biomarkerHandler := biomarkers.NewHandler(biomarkerRepo)

	documentRepo := documents.NewPostgresRepository(pool)
	documentSvc := documents.NewService(documentRepo, documents.NewLatestCache(redisClient))
	documentHandler := documents.NewHandler(documentSvc)

	tracker := feedback.NewTracker()
	feedbackRepo := feedback.NewPostgresRepository(pool)
	processor := feedback.NewProcessor(feedbackRepo, tracker)
	feedbackHandler := feedback.NewHandler(nil, processor, tracker)

	extractor := extraction.NewClient(config.ExtractionConfig{
		BaseURL: extractionStub.URL,
		Timeout: 5 * time.Second,
	})
	analyzer := inference.NewAdapter(inference.NewClient(inferenceCfg))
	builder := compressor.NewBuilder(pipelineCfg.TokenBudget, pipelineCfg.RecentTurns)
	orch := orchestrator.New(memorySvc, extractor, biomarkerRepo, builder, analyzer,
		documentSvc, tracker, nil, orchestrator.Options{
			BasePolicy:          inference.PolicyFromConfig(inferenceCfg),
			SimilarFindings:     pipelineCfg.SimilarFindings,
			SimilarityThreshold: pipelineCfg.SimilarityThreshold,
		})
	orchHandler := orchestrator.NewHandler(orch)

	router := api.NewRouter(pool, redisClient, nil, api.RouterConfig{}, api.HandlerSet{
		Analyze: orchHandler.Analyze,

		GetProfile:    memoryHandler.GetProfile,
		UpdateProfile: memoryHandler.UpdateProfile,
		History:       memoryHandler.History,
		GetSummary:    memoryHandler.GetSummary,

		GetBiomarkers:     biomarkerHandler.Get,
		ReplaceBiomarkers: biomarkerHandler.Replace,

		LatestAnalysis: documentHandler.Latest,
		ListAnalyses:   documentHandler.List,

		SubmitFeedback: feedbackHandler.Submit,
		FeedbackBias:   feedbackHandler.Bias,

		AuthMiddleware: auth.Middleware(auth.NewVerifier(tokenSecret)),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Tracker:     tracker,
	}
	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func MintToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "integration",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(tokenSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
