// Package worker orchestrates one validation job end to end: parse,
// download, validate, transform, upload, persist, publish, ack.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/internal/telemetry"
	"github.com/marmos91/assetflow/pkg/asset"
	"github.com/marmos91/assetflow/pkg/events"
	"github.com/marmos91/assetflow/pkg/metrics"
	"github.com/marmos91/assetflow/pkg/pipeline"
	"github.com/marmos91/assetflow/pkg/process"
	"github.com/marmos91/assetflow/pkg/provider"
	"github.com/marmos91/assetflow/pkg/repository"
	"github.com/marmos91/assetflow/pkg/validate"
)

// failedFileMessage is what users see on a file that exhausted its
// delivery budget. Deliberately vague: the fault is ours, not theirs.
const failedFileMessage = "Internal error during processing. We are investigating."

// Config tunes the worker.
type Config struct {
	Concurrency     int           `mapstructure:"concurrency"`
	IngressTopic    string        `mapstructure:"ingress_topic"`
	IndexTopic      string        `mapstructure:"index_topic"`
	NakDelay        time.Duration `mapstructure:"nak_delay"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 10
	}
	if c.IngressTopic == "" {
		c.IngressTopic = "validate_file"
	}
	if c.IndexTopic == "" {
		c.IndexTopic = "index_listing"
	}
	if c.NakDelay == 0 {
		c.NakDelay = 5 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Worker consumes validation jobs and drives them to a terminal file
// status. One instance handles up to Concurrency jobs at a time.
type Worker struct {
	cfg      Config
	bus      events.EventBus
	provider provider.FileProvider
	repo     repository.ListingRepository
	policy   *asset.Policy

	imagePipe *pipeline.Pipeline
	modelPipe *pipeline.Pipeline
	imageProc asset.ImageProcessor
	modelProc asset.ModelProcessor

	sem *semaphore.Weighted
}

// New wires a worker with the production pipelines and processors.
func New(cfg Config, bus events.EventBus, fp provider.FileProvider, repo repository.ListingRepository, policy *asset.Policy) *Worker {
	cfg.ApplyDefaults()
	if policy == nil {
		policy = asset.DefaultPolicy()
	}
	return &Worker{
		cfg:       cfg,
		bus:       bus,
		provider:  fp,
		repo:      repo,
		policy:    policy,
		imagePipe: pipeline.New("image", validate.ForImages()),
		modelPipe: pipeline.New("model", validate.ForModels()),
		imageProc: process.WebPNormalizer{},
		modelProc: process.ModelRenderer{},
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// Start subscribes to the ingress topic and blocks until ctx is
// cancelled, then drains in-flight jobs before returning. The
// subscription's in-flight cap equals the semaphore size, so the broker
// never delivers more than the worker can hold; the semaphore is a
// defense-in-depth guard.
func (w *Worker) Start(ctx context.Context) error {
	err := w.bus.Subscribe(ctx, w.cfg.IngressTopic, w.HandleJob, events.SubscribeOptions{
		MaxInFlight: w.cfg.Concurrency,
		ManualAck:   true,
		NakDelay:    w.cfg.NakDelay,
		OnFailure:   w.onExhausted,
	})
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", w.cfg.IngressTopic, err)
	}

	logger.Info("worker started",
		logger.KeyTopic, w.cfg.IngressTopic,
		"concurrency", w.cfg.Concurrency,
	)

	<-ctx.Done()
	logger.Info("shutdown requested, draining in-flight jobs")

	drainCtx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownTimeout)
	defer cancel()
	if err := w.sem.Acquire(drainCtx, int64(w.cfg.Concurrency)); err != nil {
		logger.Warn("shutdown timeout elapsed with jobs still in flight")
		return nil
	}
	w.sem.Release(int64(w.cfg.Concurrency))
	logger.Info("worker drained")
	return nil
}

// HandleJob is the per-delivery handler. It acks terminal outcomes
// itself (success, permanent failure, poison) and returns an error for
// retryable ones so the bus adapter naks with the configured delay.
func (w *Worker) HandleJob(ctx context.Context, msg events.IncomingMessage) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire job slot: %w", err)
	}
	defer w.sem.Release(1)

	metrics.JobStarted()
	defer metrics.JobFinished()
	start := time.Now()

	job, parseErr := parseJob(msg.Data())
	if errors.Is(parseErr, ErrMalformedPayload) {
		logger.Error("dropping undecodable payload", logger.KeyError, parseErr.Error())
		metrics.JobCompleted("unknown", "dropped", time.Since(start))
		if err := msg.Ack(); err != nil {
			logger.Warn("ack of poison message failed", logger.KeyError, err.Error())
		}
		return nil
	}

	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}

	lc := logger.NewLogContext(job.TraceID).WithJob(job.FileID, job.ListingID, job.UserID, job.FileType)
	ctx = logger.WithContext(ctx, lc)

	ctx, span := telemetry.StartJobSpan(ctx, job.TraceID, job.FileID, job.ListingID, job.FileType,
		telemetry.UserID(job.UserID),
		telemetry.Topic(w.cfg.IngressTopic),
	)
	defer span.End()

	var err error
	if parseErr != nil {
		err = parseErr
	} else {
		err = w.processJob(ctx, job)
	}

	if err == nil {
		span.SetAttributes(telemetry.Outcome("valid"))
		logger.InfoCtx(ctx, "job completed", logger.KeyDurationMs, logger.Duration(start))
		metrics.JobCompleted(job.FileType, "valid", time.Since(start))
		if aerr := msg.Ack(); aerr != nil {
			logger.WarnCtx(ctx, "ack failed", logger.KeyError, aerr.Error())
		}
		return nil
	}

	telemetry.RecordError(ctx, err)

	var perm *asset.PermanentError
	if errors.As(err, &perm) {
		reason := fmt.Sprintf("%s (trace: %s)", perm.Msg, job.TraceID)
		logger.WarnCtx(ctx, "job failed permanently", logger.KeyError, reason)
		if job.FileID != "" {
			_, mspan := telemetry.StartSpan(ctx, telemetry.SpanMarkInvalid)
			merr := w.repo.MarkFileInvalid(ctx, job.FileID, reason)
			mspan.End()
			if merr != nil {
				// The DB refused the terminal write; retry the whole
				// delivery rather than lose the rejection.
				logger.ErrorCtx(ctx, "cannot mark file invalid, retrying delivery", logger.KeyError, merr.Error())
				return asset.TransientWrap(merr, "mark file invalid")
			}
		}
		metrics.JobCompleted(job.FileType, "invalid", time.Since(start))
		if aerr := msg.Ack(); aerr != nil {
			logger.WarnCtx(ctx, "ack failed", logger.KeyError, aerr.Error())
		}
		return nil
	}

	// Transient and unclassified errors both ride the redelivery path;
	// the delivery budget bounds how long an unknown bug can loop.
	logger.WarnCtx(ctx, "job failed, will retry", logger.KeyError, err.Error())
	metrics.JobCompleted(job.FileType, "retried", time.Since(start))
	return err
}

// onExhausted runs when the bus gives up on a message. The file is
// marked FAILED, not INVALID: the input may be fine and an operator can
// requeue it.
func (w *Worker) onExhausted(ctx context.Context, msg events.IncomingMessage, lastErr error) {
	job, err := parseJob(msg.Data())
	if err != nil && job.FileID == "" {
		return
	}
	if merr := w.repo.MarkFileFailed(ctx, job.FileID, failedFileMessage); merr != nil {
		logger.Error("cannot mark exhausted file as failed",
			logger.KeyFileID, job.FileID,
			logger.KeyError, merr.Error(),
		)
		return
	}
	metrics.JobCompleted(job.FileType, "failed", 0)
	logger.Error("file marked failed after delivery exhaustion",
		logger.KeyFileID, job.FileID,
		logger.KeyError, lastErr.Error(),
	)
}

func (w *Worker) processJob(ctx context.Context, job Job) error {
	switch asset.FileType(job.FileType) {
	case asset.FileTypeImage:
		return w.processImage(ctx, job)
	case asset.FileTypeModel:
		return w.processModel(ctx, job)
	default:
		return asset.Permanent("Unsupported file type %q", job.FileType)
	}
}

// processImage runs the image pipeline inside the scoped download so
// the temp file cannot outlive the job.
func (w *Worker) processImage(ctx context.Context, job Job) error {
	var (
		newKey  string
		warning string
		meta    map[string]any
	)

	err := w.provider.GetFile(ctx, job.FileKey, func(path string) error {
		ac := asset.NewContext(path, job.TraceID, asset.FileTypeImage)

		_, pspan := telemetry.StartPipelineSpan(ctx, "image")
		results := w.imagePipe.Run(ac, w.policy)
		pspan.End()
		if failed, err := w.checkResults(ctx, results); failed {
			return err
		}

		_, procSpan := telemetry.StartSpan(ctx, telemetry.SpanProcessImage)
		procSpan.SetAttributes(telemetry.Processor(w.imageProc.Name()), telemetry.FilePath(path))
		pres := w.imageProc.Process(ac, w.policy)
		procSpan.End()
		if !pres.Success {
			return asset.Permanent("Image processing failed: %s", pres.ErrorMessage)
		}
		defer os.Remove(pres.Output)

		destKey := fmt.Sprintf("%s/%s/%s.webp", job.UserID, job.ListingID, job.FileID)
		if err := w.provider.StoreImage(ctx, pres.Output, destKey); err != nil {
			return asset.TransientWrap(err, "upload of %q failed", destKey)
		}

		newKey = destKey
		warning = pres.Warning
		meta = mergeMeta(pipeline.MergeMetadata(results), pres.Metadata)
		return nil
	})
	if err != nil {
		return err
	}

	return w.finishJob(ctx, job, repository.CompleteParams{
		FileID:      job.FileID,
		ListingID:   job.ListingID,
		NewFileKey:  newKey,
		FileWarning: warning,
		Metadata:    meta,
	})
}

// processModel downloads without auto-cleanup because the renderer
// writes siblings next to the source; every local file is removed after
// its upload attempt, and the deferred sweep covers error paths.
func (w *Worker) processModel(ctx context.Context, job Job) error {
	path, err := w.provider.GetFileTemp(ctx, job.FileKey)
	if err != nil {
		return asset.TransientWrap(err, "download of %q failed", job.FileKey)
	}

	local := []string{path}
	defer func() {
		for _, p := range local {
			os.Remove(p)
		}
	}()

	ac := asset.NewContext(path, job.TraceID, asset.FileTypeModel)

	_, pspan := telemetry.StartPipelineSpan(ctx, "model")
	results := w.modelPipe.Run(ac, w.policy)
	pspan.End()
	if failed, err := w.checkResults(ctx, results); failed {
		return err
	}

	_, procSpan := telemetry.StartSpan(ctx, telemetry.SpanProcessModel)
	procSpan.SetAttributes(telemetry.Processor(w.modelProc.Name()), telemetry.FilePath(path))
	pres := w.modelProc.Process(ac, w.policy)
	procSpan.End()
	if !pres.Success {
		return asset.Permanent("Model processing failed: %s", pres.ErrorMessage)
	}
	local = append(local, pres.Output.GeneratedImagePaths...)

	ext := strings.ToLower(filepath.Ext(job.FileKey))
	originalKey := fmt.Sprintf("%s/%s/%s%s", job.UserID, job.ListingID, job.FileID, ext)
	if err := w.provider.StoreProductFile(ctx, path, originalKey); err != nil {
		return asset.TransientWrap(err, "upload of %q failed", originalKey)
	}

	var generatedKeys []string
	for _, renderPath := range pres.Output.GeneratedImagePaths {
		destKey := fmt.Sprintf("%s/%s/%s/%s", job.UserID, job.ListingID, job.FileID, renderSuffix(renderPath))
		if err := w.provider.StoreImage(ctx, renderPath, destKey); err != nil {
			return asset.TransientWrap(err, "upload of %q failed", destKey)
		}
		generatedKeys = append(generatedKeys, destKey)
	}

	return w.finishJob(ctx, job, repository.CompleteParams{
		FileID:        job.FileID,
		ListingID:     job.ListingID,
		NewFileKey:    originalKey,
		GeneratedKeys: generatedKeys,
		FileWarning:   pres.Warning,
		Metadata:      mergeMeta(pipeline.MergeMetadata(results), pres.Metadata),
	})
}

// checkResults converts the first failing validation into a permanent
// failure.
func (w *Worker) checkResults(ctx context.Context, results []asset.Result) (bool, error) {
	r, failed := pipeline.FirstInvalid(results)
	if !failed {
		return false, nil
	}
	metrics.ValidationFailure(r.ValidatorName, string(r.ErrorCode))
	telemetry.SetAttributes(ctx, telemetry.Validator(r.ValidatorName), telemetry.ErrorCode(string(r.ErrorCode)))
	logger.WarnCtx(ctx, "validation failed",
		logger.KeyValidator, r.ValidatorName,
		logger.KeyErrCode, string(r.ErrorCode),
		logger.KeyError, r.ErrorMessage,
	)
	return true, asset.Permanent("%s: %s", r.ErrorCode, r.ErrorMessage)
}

// finishJob commits the fan-in and publishes the activation event.
// The publish is best-effort: the DB transition is the authoritative
// signal and downstream consumers are idempotent.
func (w *Worker) finishJob(ctx context.Context, job Job, params repository.CompleteParams) error {
	_, dspan := telemetry.StartSpan(ctx, telemetry.SpanCompleteFile)
	activated, err := w.repo.CompleteFileValidation(ctx, params)
	dspan.End()
	if err != nil {
		return asset.TransientWrap(err, "database update failed")
	}
	if activated {
		ev := events.NewIndexListingEvent(w.cfg.IndexTopic, job.ListingID)
		_, pubSpan := telemetry.StartSpan(ctx, telemetry.SpanPublish)
		pubSpan.SetAttributes(telemetry.Topic(w.cfg.IndexTopic))
		perr := w.bus.Publish(ctx, ev)
		pubSpan.End()
		if perr != nil {
			logger.ErrorCtx(ctx, "failed to publish index event, continuing", logger.KeyError, perr.Error())
		}
	}
	return nil
}

// renderSuffix maps a render sibling path to its upload name:
// /tmp/asset-123_iso.webp -> iso.webp.
func renderSuffix(path string) string {
	base := filepath.Base(path)
	if i := strings.LastIndex(base, "_"); i >= 0 {
		return base[i+1:]
	}
	return base
}

func mergeMeta(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
