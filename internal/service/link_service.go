package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/SwarupAusarkar/QuickPath/internal/models"
	"github.com/SwarupAusarkar/QuickPath/internal/repository"
	"go.uber.org/zap"
)

var ErrInvalidURL = errors.New("invalid original URL")

const (
	defaultCacheTTL = 24 * time.Hour
	qrUploadTimeout = 10 * time.Second
)

// LinkService orchestrates the shorten flow (allocate, persist, QR) and
// resolves short codes on the redirect hot path.
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	Resolve(ctx context.Context, code string) (string, error)
	GetLink(ctx context.Context, code string) (*models.Link, error)
	ListLinks(ctx context.Context, limit, offset int) ([]*models.Link, error)
	ShortURL(code string) string
}

type linkService struct {
	linkRepo    repository.LinkRepository
	cacheRepo   repository.CacheRepository
	generator   CodeGenerator
	qrProducer  QRProducer
	qrProcessor QRProcessor
	logger      *zap.Logger
	baseURL     string
}

func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	generator CodeGenerator,
	qrProducer QRProducer,
	qrProcessor QRProcessor,
	baseURL string,
	logger *zap.Logger,
) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		linkRepo:    linkRepo,
		cacheRepo:   cacheRepo,
		generator:   generator,
		qrProducer:  qrProducer,
		qrProcessor: qrProcessor,
		logger:      logger,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// CreateLink allocates a code, persists the mapping and best-effort
// attaches a QR image. The link is committed before any QR work, so a
// QR failure or client disconnect never loses a created link.
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	originalURL, err := normalizeURL(input.OriginalURL)
	if err != nil {
		return nil, err
	}

	link, err := s.persistLink(ctx, originalURL, input.CustomCode)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, link.ShortCode, link, defaultCacheTTL); err != nil {
		s.logger.Warn("Failed to cache link", zap.String("short_code", link.ShortCode), zap.Error(err))
	}

	s.attachQR(ctx, link)

	return link, nil
}

// persistLink runs the allocate/insert loop. The generator's existence
// check narrows the race window, but a concurrent insert can still beat
// us to the unique index, so collisions at insert time restart the loop
// for generated codes. Custom codes surface the conflict to the caller.
func (s *linkService) persistLink(ctx context.Context, originalURL string, customCode *string) (*models.Link, error) {
	isCustom := customCode != nil && *customCode != ""

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := s.generator.Allocate(ctx, customCode)
		if err != nil {
			return nil, err
		}

		link := &models.Link{
			ShortCode:   code,
			OriginalURL: originalURL,
			CreatedAt:   time.Now(),
		}

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, repository.ErrCodeExists) {
			if isCustom {
				return nil, ErrCodeTaken
			}
			continue
		}
		return nil, err
	}

	return nil, ErrGenerationExhausted
}

// attachQR renders and uploads the QR image for a freshly created link.
// It runs on a context detached from the request so a disconnecting
// client cannot abandon the upload mid-flight. Failures enqueue a
// background retry and leave the link without a QR URL.
func (s *linkService) attachQR(ctx context.Context, link *models.Link) {
	qrCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), qrUploadTimeout)
	defer cancel()

	shortURL := s.ShortURL(link.ShortCode)

	qrURL, err := s.qrProducer.RenderAndStore(qrCtx, link.ShortCode, shortURL)
	if err != nil {
		s.logger.Warn("QR generation failed, scheduling retry",
			zap.String("short_code", link.ShortCode),
			zap.Error(err),
		)
		if err := s.qrProcessor.Enqueue(qrCtx, QRJob{ShortCode: link.ShortCode, ShortURL: shortURL}); err != nil {
			s.logger.Warn("Failed to enqueue QR retry", zap.String("short_code", link.ShortCode), zap.Error(err))
		}
		return
	}

	if err := s.linkRepo.AttachQRCodeURL(qrCtx, link.ShortCode, qrURL); err != nil {
		s.logger.Warn("Failed to store QR code URL",
			zap.String("short_code", link.ShortCode),
			zap.Error(err),
		)
		return
	}

	link.QRCodeURL = qrURL
	if err := s.cacheRepo.Set(qrCtx, link.ShortCode, link, defaultCacheTTL); err != nil {
		s.logger.Warn("Failed to refresh cached link", zap.String("short_code", link.ShortCode), zap.Error(err))
	}
}

// Resolve returns the original URL for a code, exactly as stored. This is
// the hot path: cache first, then Postgres.
func (s *linkService) Resolve(ctx context.Context, code string) (string, error) {
	link, err := s.GetLink(ctx, code)
	if err != nil {
		return "", err
	}
	return link.OriginalURL, nil
}

func (s *linkService) GetLink(ctx context.Context, code string) (*models.Link, error) {
	link, err := s.cacheRepo.Get(ctx, code)
	if err == nil {
		return link, nil
	}

	link, err = s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, code, link, defaultCacheTTL); err != nil {
		s.logger.Warn("Failed to cache link", zap.String("short_code", code), zap.Error(err))
	}

	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, limit, offset int) ([]*models.Link, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.linkRepo.List(ctx, limit, offset)
}

func (s *linkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

// normalizeURL prepends https:// to scheme-less input, then requires a
// syntactically valid absolute http(s) URL. Validation happens once, at
// creation; Resolve returns the stored URL untouched.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	return raw, nil
}
