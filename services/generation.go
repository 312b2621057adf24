package services

import (
	"context"
	"errors"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumen-studio/aperture_api/dto"
	"github.com/lumen-studio/aperture_api/model"
	"github.com/lumen-studio/aperture_api/shared"
)

// PredictionGateway is the provider boundary the orchestrator talks to.
// Implemented by ReplicateService; faked in tests.
type PredictionGateway interface {
	Submit(ctx context.Context, prompt, aspectRatio string) (*Prediction, error)
	Poll(ctx context.Context, predictionID string) (*Prediction, error)
	Cancel(ctx context.Context, predictionID string) (*Prediction, error)
}

// AssetStore persists a generation's output beyond the provider's expiring URL.
type AssetStore interface {
	TransferFromURL(ctx context.Context, sourceURL, userID, generationID string) (string, error)
	DeleteGenerationAsset(ctx context.Context, userID, generationID string) error
}

// GenerationService composes the credit ledger, job store, provider gateway
// and asset storage into the user-facing generate operation, and owns the
// per-job poll loops that reconcile provider state back onto job records.
type GenerationService struct {
	appContext.DefaultService

	sqlSvc    *PostgresService
	creditSvc *CreditService
	redisSvc  *RedisService
	gateway   PredictionGateway
	assets    AssetStore

	pollIntervalStart time.Duration
	pollIntervalMax   time.Duration
	pollMultiplier    float64
	maxPollDuration   time.Duration

	now     func() time.Time
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

const GENERATION_SVC = "generation_svc"

const (
	generationCacheTTL    = time.Hour
	generationCachePrefix = "generation:"
)

func (svc GenerationService) Id() string {
	return GENERATION_SVC
}

func (svc *GenerationService) Configure(ctx *appContext.Context) error {
	svc.pollIntervalStart = envDuration("POLL_INTERVAL_START", time.Second)
	svc.pollIntervalMax = envDuration("POLL_INTERVAL_MAX", 10*time.Second)
	svc.pollMultiplier = 1.5
	svc.maxPollDuration = envDuration("MAX_POLL_DURATION", 5*time.Minute)

	svc.now = time.Now
	svc.baseCtx, svc.cancel = context.WithCancel(context.Background())

	return svc.DefaultService.Configure(ctx)
}

func (svc *GenerationService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.creditSvc = svc.Service(CREDIT_SVC).(*CreditService)
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.gateway = svc.Service(REPLICATE_SVC).(*ReplicateService)
	svc.assets = svc.Service(MINIO_SVC).(*MinIOService)
	return nil
}

func (svc *GenerationService) Shutdown() {
	svc.cancel()
	svc.wg.Wait()
}

// ==================== ORCHESTRATION ====================

// Generate runs the synchronous half of an image generation: charge, create,
// submit, link. It returns as soon as the job is marked processing; the
// detached poll loop carries it to a terminal state. Any failure before the
// job reaches processing refunds the charge.
func (svc *GenerationService) Generate(userID string, req dto.GenerateRequest) (*dto.GenerationResponse, error) {
	cost := model.CalculateCost(req.AspectRatio)

	if err := svc.creditSvc.CheckAndCharge(userID, cost); err != nil {
		return nil, err
	}

	gen := &model.Generation{
		UserID:       userID,
		Prompt:       req.Prompt,
		AspectRatio:  req.AspectRatio,
		ModelVersion: model.DefaultModelVersion,
		Status:       shared.StatusStarting,
		CostCredits:  cost,
	}

	if err := svc.sqlSvc.CreateGeneration(gen); err != nil {
		svc.creditSvc.Refund(userID, cost)
		return nil, svc.sqlSvc.HandleError(err)
	}

	if err := svc.creditSvc.RecordGeneration(userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Failed to record generation stats")
	}
	RecordGenerationStarted(cost)

	prediction, err := svc.gateway.Submit(svc.baseCtx, req.Prompt, req.AspectRatio)
	if err != nil {
		svc.markTerminal(gen.ID, shared.StatusFailed, map[string]interface{}{
			"error_message": err.Error(),
		})
		svc.creditSvc.Refund(userID, cost)
		return nil, shared.NewProviderSubmitError(err, "Failed to start image generation")
	}

	updated, err := svc.sqlSvc.UpdateGeneration(gen.ID, map[string]interface{}{
		"prediction_id": prediction.ID,
		"status":        shared.StatusProcessing,
	})
	if err != nil || !updated {
		if err == nil {
			err = errors.New("generation reached terminal state before processing")
		}
		svc.markTerminal(gen.ID, shared.StatusFailed, map[string]interface{}{
			"error_message": err.Error(),
		})
		return nil, svc.sqlSvc.HandleError(err)
	}

	svc.wg.Add(1)
	go svc.pollPrediction(gen.ID, prediction.ID, userID)

	created, err := svc.sqlSvc.GetGeneration(gen.ID)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	resp := dto.NewGenerationResponse(created)
	return &resp, nil
}

// Get returns a single generation the user owns. Terminal records are served
// from cache once observed, since they can no longer change.
func (svc *GenerationService) Get(userID, generationID string, isAdmin bool) (*dto.GenerationResponse, error) {
	if svc.redisSvc != nil {
		var cached dto.GenerationResponse
		found, err := svc.redisSvc.GetJSON(svc.baseCtx, generationCachePrefix+generationID, &cached)
		if err != nil {
			log.WithError(err).Warn("Generation cache read failed")
		} else if found && (isAdmin || cached.UserID == userID) {
			return &cached, nil
		}
	}

	gen, err := svc.loadOwned(userID, generationID, isAdmin)
	if err != nil {
		return nil, err
	}

	resp := dto.NewGenerationResponse(gen)

	if gen.IsTerminal() && svc.redisSvc != nil {
		if err := svc.redisSvc.Set(svc.baseCtx, generationCachePrefix+generationID, resp, generationCacheTTL); err != nil {
			log.WithError(err).Warn("Generation cache write failed")
		}
	}

	return &resp, nil
}

func (svc *GenerationService) List(userID string, req dto.GenerationListRequest) (*dto.GenerationListResponse, error) {
	generations, total, err := svc.sqlSvc.ListGenerations(userID, req)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	resp := &dto.GenerationListResponse{
		Generations: make([]dto.GenerationResponse, 0, len(generations)),
		Total:       total,
	}
	for i := range generations {
		resp.Generations = append(resp.Generations, dto.NewGenerationResponse(&generations[i]))
	}

	return resp, nil
}

// Cancel asks the provider to stop the prediction, then force-sets the local
// record to cancelled. The downstream cancellation is best effort; local
// state is authoritative. Cancelling a terminal or never-submitted job is a
// reported no-op, not an error.
func (svc *GenerationService) Cancel(userID, generationID string, isAdmin bool) (*dto.CancelGenerationResponse, error) {
	gen, err := svc.loadOwned(userID, generationID, isAdmin)
	if err != nil {
		return nil, err
	}

	if gen.IsTerminal() {
		return &dto.CancelGenerationResponse{
			ID:        gen.ID,
			Status:    gen.Status,
			Cancelled: false,
			Reason:    "generation already completed",
		}, nil
	}

	if gen.PredictionID == nil {
		return &dto.CancelGenerationResponse{
			ID:        gen.ID,
			Status:    gen.Status,
			Cancelled: false,
			Reason:    "generation was never submitted to the provider",
		}, nil
	}

	if _, err := svc.gateway.Cancel(svc.baseCtx, *gen.PredictionID); err != nil {
		log.WithError(err).WithField("generation_id", gen.ID).Warn("Provider cancel failed, forcing local state")
	}

	svc.markTerminal(gen.ID, shared.StatusCancelled, nil)
	svc.invalidateCache(gen.ID)

	return &dto.CancelGenerationResponse{
		ID:        gen.ID,
		Status:    shared.StatusCancelled,
		Cancelled: true,
	}, nil
}

// Delete removes the stored asset and the record.
func (svc *GenerationService) Delete(userID, generationID string, isAdmin bool) error {
	gen, err := svc.loadOwned(userID, generationID, isAdmin)
	if err != nil {
		return err
	}

	if gen.ImageURL != nil && svc.assets != nil {
		if err := svc.assets.DeleteGenerationAsset(svc.baseCtx, gen.UserID, gen.ID); err != nil {
			log.WithError(err).WithField("generation_id", gen.ID).Warn("Failed to delete stored asset")
		}
	}

	if err := svc.sqlSvc.DeleteGeneration(gen.ID, gen.UserID); err != nil {
		return svc.sqlSvc.HandleError(err)
	}

	svc.invalidateCache(gen.ID)
	return nil
}

func (svc *GenerationService) loadOwned(userID, generationID string, isAdmin bool) (*model.Generation, error) {
	gen, err := svc.sqlSvc.GetGeneration(generationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Generation not found")
		}
		return nil, svc.sqlSvc.HandleError(err)
	}

	if !isAdmin && gen.UserID != userID {
		return nil, shared.NewNotFoundError("Generation not found")
	}

	return gen, nil
}

// ==================== POLL LOOP ====================

// pollPrediction drives one job from processing to a terminal state. Polls
// are strictly sequential per job: the next poll is never issued before the
// previous poll's write completed, which keeps status transitions monotonic
// for a single job.
func (svc *GenerationService) pollPrediction(generationID, predictionID, userID string) {
	defer svc.wg.Done()

	interval := svc.pollIntervalStart
	deadline := svc.now().Add(svc.maxPollDuration)

	for {
		if svc.now().After(deadline) {
			svc.markTerminal(generationID, shared.StatusFailed, map[string]interface{}{
				"error_message": "Generation timed out",
			})
			return
		}

		RecordProviderPoll()
		prediction, err := svc.gateway.Poll(svc.baseCtx, predictionID)
		if err != nil {
			if svc.baseCtx.Err() != nil {
				log.WithField("generation_id", generationID).Warn("Poll loop stopped by shutdown, job left in flight")
				return
			}
			svc.markTerminal(generationID, shared.StatusFailed, map[string]interface{}{
				"error_message": err.Error(),
			})
			return
		}

		switch MapProviderStatus(prediction.Status) {
		case shared.StatusSucceeded:
			if output := prediction.FirstOutput(); output != "" {
				svc.finishSucceeded(generationID, userID, output)
				return
			}
			// Succeeded without output yet, keep polling until the
			// provider attaches it or the deadline fires.

		case shared.StatusFailed:
			message := prediction.Error
			if message == "" {
				message = "Generation failed"
			}
			svc.markTerminal(generationID, shared.StatusFailed, map[string]interface{}{
				"error_message": message,
			})
			return

		case shared.StatusCancelled:
			fields := map[string]interface{}{}
			if prediction.Error != "" {
				fields["error_message"] = prediction.Error
			}
			svc.markTerminal(generationID, shared.StatusCancelled, fields)
			return

		case shared.StatusProcessing:
			updated, err := svc.sqlSvc.UpdateGeneration(generationID, map[string]interface{}{
				"status": shared.StatusProcessing,
			})
			if err != nil {
				svc.markTerminal(generationID, shared.StatusFailed, map[string]interface{}{
					"error_message": err.Error(),
				})
				return
			}
			if !updated {
				// The row reached a terminal state elsewhere (cancel).
				return
			}

		case shared.StatusStarting:
			// No job update while the provider is still warming up.
		}

		select {
		case <-time.After(interval):
		case <-svc.baseCtx.Done():
			log.WithField("generation_id", generationID).Warn("Poll loop stopped by shutdown, job left in flight")
			return
		}

		interval = svc.nextInterval(interval)
	}
}

// finishSucceeded moves the output into durable storage and records success.
// A storage transfer failure degrades to the provider's original URL rather
// than failing an otherwise-succeeded job.
func (svc *GenerationService) finishSucceeded(generationID, userID, outputURL string) {
	imageURL := outputURL
	if svc.assets != nil {
		stored, err := svc.assets.TransferFromURL(svc.baseCtx, outputURL, userID, generationID)
		if err != nil {
			log.WithError(err).WithField("generation_id", generationID).Warn("Asset transfer failed, falling back to provider URL")
		} else {
			imageURL = stored
		}
	}

	svc.markTerminal(generationID, shared.StatusSucceeded, map[string]interface{}{
		"image_url": imageURL,
	})
}

// markTerminal performs the single terminal transition for a job. The store's
// terminal guard makes it a no-op if the job already finished.
func (svc *GenerationService) markTerminal(generationID, status string, extra map[string]interface{}) {
	now := svc.now()
	fields := map[string]interface{}{
		"status":       status,
		"completed_at": &now,
	}
	for k, v := range extra {
		fields[k] = v
	}

	updated, err := svc.sqlSvc.UpdateGeneration(generationID, fields)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"generation_id": generationID,
			"status":        status,
		}).Error("Failed to finalize generation")
		return
	}
	if !updated {
		log.WithFields(log.Fields{
			"generation_id": generationID,
			"status":        status,
		}).Debug("Generation already terminal, skipping write")
		return
	}

	RecordGenerationCompleted(status)
}

func (svc *GenerationService) nextInterval(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * svc.pollMultiplier)
	if next > svc.pollIntervalMax {
		next = svc.pollIntervalMax
	}
	return next
}

func (svc *GenerationService) invalidateCache(generationID string) {
	if svc.redisSvc == nil {
		return
	}
	if err := svc.redisSvc.Delete(svc.baseCtx, generationCachePrefix+generationID); err != nil {
		log.WithError(err).Warn("Generation cache invalidation failed")
	}
}
