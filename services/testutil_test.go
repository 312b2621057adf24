package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumen-studio/aperture_api/model"
)

func newTestSQL(t *testing.T) *PostgresService {
	t.Helper()

	// Unique name per test so shared-cache connections see the same
	// in-memory database without bleeding into other tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Generation{}))

	return &PostgresService{db: db}
}

func seedUser(t *testing.T, sqlSvc *PostgresService, credits float64, isAdmin bool) *model.User {
	t.Helper()

	suffix := uuid.New().String()[:8]
	user := &model.User{
		Email:    fmt.Sprintf("user-%s@example.com", suffix),
		Username: "user" + suffix,
		Password: "not-a-real-hash",
		Credits:  credits,
		IsAdmin:  isAdmin,
	}
	require.NoError(t, sqlSvc.CreateUser(user))
	return user
}

func newTestRateLimiter(now func() time.Time) *RateLimitService {
	return &RateLimitService{
		maxAttempts:     5,
		windowDuration:  15 * time.Minute,
		blockDuration:   30 * time.Minute,
		cleanupInterval: time.Minute,
		extendedWindow:  2,
		now:             now,
		entries:         make(map[string]*rateLimitEntry),
		closed:          make(chan struct{}),
	}
}

// fakeGateway scripts provider responses for the orchestrator. Poll walks the
// scripted sequence and repeats the last element once exhausted.
type fakeGateway struct {
	mu sync.Mutex

	submitID  string
	submitErr error

	polls   []Prediction
	pollErr error

	pollCount int
	cancelled []string
	cancelErr error
}

func (g *fakeGateway) Submit(ctx context.Context, prompt, aspectRatio string) (*Prediction, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	id := g.submitID
	if id == "" {
		id = "pred-1"
	}
	return &Prediction{ID: id, Status: ProviderStatusStarting}, nil
}

func (g *fakeGateway) Poll(ctx context.Context, predictionID string) (*Prediction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pollErr != nil {
		return nil, g.pollErr
	}

	idx := g.pollCount
	if idx >= len(g.polls) {
		idx = len(g.polls) - 1
	}
	g.pollCount++

	p := g.polls[idx]
	return &p, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, predictionID string) (*Prediction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancelled = append(g.cancelled, predictionID)
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	return &Prediction{ID: predictionID, Status: ProviderStatusCanceled}, nil
}

type fakeAssets struct {
	mu sync.Mutex

	transferErr error
	transferred []string
	deleted     []string
}

func (a *fakeAssets) TransferFromURL(ctx context.Context, sourceURL, userID, generationID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.transferErr != nil {
		return "", a.transferErr
	}
	a.transferred = append(a.transferred, sourceURL)
	return fmt.Sprintf("https://cdn.example.com/generations/%s/%s.png", userID, generationID), nil
}

func (a *fakeAssets) DeleteGenerationAsset(ctx context.Context, userID, generationID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.deleted = append(a.deleted, generationID)
	return nil
}

func newTestGenerationService(sqlSvc *PostgresService, gateway PredictionGateway, assets AssetStore) *GenerationService {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &GenerationService{
		sqlSvc:            sqlSvc,
		creditSvc:         &CreditService{sqlSvc: sqlSvc},
		gateway:           gateway,
		assets:            assets,
		pollIntervalStart: time.Millisecond,
		pollIntervalMax:   4 * time.Millisecond,
		pollMultiplier:    1.5,
		maxPollDuration:   2 * time.Second,
		now:               time.Now,
		baseCtx:           baseCtx,
		cancel:            cancel,
	}
}

func waitTerminal(t *testing.T, sqlSvc *PostgresService, generationID string) *model.Generation {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		gen, err := sqlSvc.GetGeneration(generationID)
		require.NoError(t, err)
		if gen.IsTerminal() {
			return gen
		}
		time.Sleep(2 * time.Millisecond)
	}

	t.Fatal("generation never reached a terminal state")
	return nil
}
