package service

import (
	"context"
	"sync"
	"time"

	"github.com/SwarupAusarkar/QuickPath/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultWorkerCount   = 2
	defaultChannelBuffer = 256
	maxAttachRetries     = 3
	qrJobTimeout         = 15 * time.Second
)

// QRJob is one pending QR render/upload for a committed link.
type QRJob struct {
	ShortCode string
	ShortURL  string
}

// QRProcessor retries QR generation in the background for links whose QR
// pipeline failed during the shorten request. Attaching is overwrite-safe,
// so re-running a job is harmless.
type QRProcessor interface {
	Start()
	Stop()
	Enqueue(ctx context.Context, job QRJob) error
}

type qrProcessor struct {
	producer    QRProducer
	linkRepo    repository.LinkRepository
	cacheRepo   repository.CacheRepository
	logger      *zap.Logger
	jobs        chan QRJob
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewQRProcessor(
	producer QRProducer,
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	logger *zap.Logger,
) QRProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &qrProcessor{
		producer:    producer,
		linkRepo:    linkRepo,
		cacheRepo:   cacheRepo,
		logger:      logger,
		jobs:        make(chan QRJob, defaultChannelBuffer),
		workerCount: defaultWorkerCount,
	}
}

func (p *qrProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Starting QR retry workers", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *qrProcessor) Stop() {
	p.logger.Info("Stopping QR processor...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("QR processor stopped")
}

func (p *qrProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("QR worker started", zap.Int("id", id))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("QR worker stopped", zap.Int("id", id))
			return

		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.processJob(job)
		}
	}
}

func (p *qrProcessor) processJob(job QRJob) {
	ctx, cancel := context.WithTimeout(p.ctx, qrJobTimeout)
	defer cancel()

	var lastErr error
	for i := 0; i < maxAttachRetries; i++ {
		if lastErr = p.attach(ctx, job); lastErr == nil {
			return
		}
		if i < maxAttachRetries-1 {
			p.logger.Debug("Retrying QR attachment",
				zap.String("short_code", job.ShortCode),
				zap.Int("attempt", i+1),
				zap.Error(lastErr),
			)
			time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
		}
	}

	p.logger.Error("Failed to attach QR code after all retries",
		zap.String("short_code", job.ShortCode),
		zap.Error(lastErr),
	)
}

func (p *qrProcessor) attach(ctx context.Context, job QRJob) error {
	qrURL, err := p.producer.RenderAndStore(ctx, job.ShortCode, job.ShortURL)
	if err != nil {
		return err
	}

	if err := p.linkRepo.AttachQRCodeURL(ctx, job.ShortCode, qrURL); err != nil {
		return err
	}

	// Evict the stale cache entry so the next read sees the QR URL.
	if err := p.cacheRepo.Delete(ctx, job.ShortCode); err != nil {
		p.logger.Warn("Failed to evict cached link after QR attach",
			zap.String("short_code", job.ShortCode),
			zap.Error(err),
		)
	}

	return nil
}

// Enqueue hands a job to the worker pool without blocking the request
// path. A full buffer drops the job; the link stays valid without its QR.
func (p *qrProcessor) Enqueue(ctx context.Context, job QRJob) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	default:
		p.logger.Warn("QR job buffer full, dropping job",
			zap.String("short_code", job.ShortCode),
		)
		return nil
	}
}
