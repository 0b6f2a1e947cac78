package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/SwarupAusarkar/QuickPath/internal/config"
	"github.com/SwarupAusarkar/QuickPath/internal/handler"
	"github.com/SwarupAusarkar/QuickPath/internal/middleware"
	"github.com/SwarupAusarkar/QuickPath/internal/repository"
	"github.com/SwarupAusarkar/QuickPath/internal/service"
	"github.com/SwarupAusarkar/QuickPath/internal/service/mocks"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const baseURL = "http://localhost:8080"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEnv holds the containerized test environment. Blob storage is an
// in-memory fake: QR bytes are opaque to these tests, the contract under
// test is persistence and the HTTP surface.
type TestEnv struct {
	router         *gin.Engine
	storage        *mocks.MockObjectStorage
	qrProcessor    service.QRProcessor
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

func setupTestEnv(t *testing.T) *TestEnv {
	ctx := t.Context()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("quickpath"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "quickpath",
	})
	require.NoError(t, err)

	require.NoError(t, repository.Migrate(ctx, db.Pool))

	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	objectStore := mocks.NewMockObjectStorage()

	generator := service.NewCodeGenerator(linkRepo)
	producer := service.NewQRProducer(objectStore)
	qrProcessor := service.NewQRProcessor(producer, linkRepo, cacheRepo, nil)
	qrProcessor.Start()

	linkService := service.NewLinkService(linkRepo, cacheRepo, generator, producer, qrProcessor, baseURL, nil)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 1000, // effectively unlimited for tests
		BurstSize:         2000,
		CleanupInterval:   time.Minute,
	})

	router := handler.NewRouter(linkService, rateLimiter, nil)

	return &TestEnv{
		router:         router,
		storage:        objectStore,
		qrProcessor:    qrProcessor,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

func (env *TestEnv) teardown(t *testing.T) {
	env.qrProcessor.Stop()
	env.db.Close()
	env.redis.Close()

	ctx := t.Context()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

type ShortenRequest struct {
	OriginalURL string `json:"original_url"`
	CustomShort string `json:"custom_short,omitempty"`
}

type ShortenResponse struct {
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	QRCodeURL   string `json:"qr_code_url,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (env *TestEnv) shorten(t *testing.T, request ShortenRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(request)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/shorten", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	return w
}

// TestIntegration_Shorten exercises POST /shorten against real Postgres.
func TestIntegration_Shorten(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	tests := []struct {
		name           string
		request        ShortenRequest
		expectedStatus int
		expectError    bool
	}{
		{
			name:           "valid URL",
			request:        ShortenRequest{OriginalURL: "https://example.com/test"},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "valid URL with custom code",
			request: ShortenRequest{
				OriginalURL: "https://example.com/custom",
				CustomShort: "my-custom",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "scheme-less URL gets normalized",
			request:        ShortenRequest{OriginalURL: "example.com/plain"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid URL",
			request:        ShortenRequest{OriginalURL: "ftp://example.com"},
			expectedStatus: http.StatusBadRequest,
			expectError:    true,
		},
		{
			name: "invalid custom code",
			request: ShortenRequest{
				OriginalURL: "https://example.com/bad-code",
				CustomShort: "not valid!",
			},
			expectedStatus: http.StatusBadRequest,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.shorten(t, tt.request)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectError {
				var errResp ErrorResponse
				json.Unmarshal(w.Body.Bytes(), &errResp)
				assert.NotEmpty(t, errResp.Error)
			} else {
				var resp ShortenResponse
				json.Unmarshal(w.Body.Bytes(), &resp)
				assert.NotEmpty(t, resp.ShortURL)
				assert.NotEmpty(t, resp.QRCodeURL)
			}
		})
	}
}

// TestIntegration_Redirect covers the shorten-then-redirect roundtrip.
func TestIntegration_Redirect(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	createReq := ShortenRequest{OriginalURL: "https://example.com/integration-test?q=1"}
	w := env.shorten(t, createReq)
	require.Equal(t, http.StatusCreated, w.Code)

	var createResp ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	code := createResp.ShortURL[len(baseURL)+1:]

	t.Run("redirects to the original URL", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/"+code, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, createReq.OriginalURL, w.Header().Get("Location"))
	})

	t.Run("resolves from cache on repeat", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/"+code, nil)
			env.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, createReq.OriginalURL, w.Header().Get("Location"))
		}
	})

	t.Run("unknown code yields 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/nonexistent", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestIntegration_CustomCodeConflict checks that the database unique
// constraint yields a 409 on the second use of a custom code.
func TestIntegration_CustomCodeConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	first := env.shorten(t, ShortenRequest{
		OriginalURL: "https://example.com/one",
		CustomShort: "conflict",
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.shorten(t, ShortenRequest{
		OriginalURL: "https://example.com/two",
		CustomShort: "conflict",
	})
	assert.Equal(t, http.StatusConflict, second.Code)

	// The winning mapping is intact.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/conflict", nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/one", w.Header().Get("Location"))
}

// TestIntegration_ConcurrentShorten checks that N concurrent shorten calls
// produce N distinct codes against the real unique index.
func TestIntegration_ConcurrentShorten(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	const n = 20
	results := make(chan string, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w := env.shorten(t, ShortenRequest{
				OriginalURL: fmt.Sprintf("https://example.com/concurrent/%d", id),
			})
			if assert.Equal(t, http.StatusCreated, w.Code) {
				var resp ShortenResponse
				if assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)) {
					results <- resp.ShortURL
				}
			}
		}(i)
	}

	wg.Wait()
	close(results)

	urls := make(map[string]bool)
	for u := range results {
		assert.NotContains(t, urls, u, "short URLs must be unique")
		urls[u] = true
	}
	assert.Len(t, urls, n)
}

// TestIntegration_QRFailureDegradesGracefully checks that a storage outage
// still yields a 201 and a working redirect, just without a QR URL.
func TestIntegration_QRFailureDegradesGracefully(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.storage.SetFailUploads(true)

	w := env.shorten(t, ShortenRequest{OriginalURL: "https://example.com/no-qr"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.QRCodeURL)

	code := resp.ShortURL[len(baseURL)+1:]
	redirect := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/"+code, nil)
	env.router.ServeHTTP(redirect, req)
	assert.Equal(t, http.StatusFound, redirect.Code)
}

// TestIntegration_QRBackgroundRetry checks that when storage recovers, the
// retry pool attaches the QR URL to an existing link.
func TestIntegration_QRBackgroundRetry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.storage.SetFailUploads(true)

	w := env.shorten(t, ShortenRequest{OriginalURL: "https://example.com/retry"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Empty(t, resp.QRCodeURL)
	code := resp.ShortURL[len(baseURL)+1:]

	// Storage recovers; the queued retry should attach the QR URL.
	env.storage.SetFailUploads(false)

	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/links/"+code, nil)
		env.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			return false
		}
		var link map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &link); err != nil {
			return false
		}
		qrURL, _ := link["qr_code_url"].(string)
		return qrURL != ""
	}, 5*time.Second, 100*time.Millisecond)
}

// TestIntegration_HealthCheck checks the liveness endpoint.
func TestIntegration_HealthCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "quickpath", resp["service"])
}
