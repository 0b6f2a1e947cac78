package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SwarupAusarkar/QuickPath/internal/models"
	"github.com/SwarupAusarkar/QuickPath/internal/repository"
	"github.com/SwarupAusarkar/QuickPath/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		service: service,
		logger:  logger,
	}
}

type ShortenRequest struct {
	OriginalURL string `json:"original_url" binding:"required"`
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

// Shorten handles POST /shorten: allocate a code, persist the mapping,
// best-effort QR. QR pipeline failures never fail the request; the
// response just lacks qr_code_url.
func (h *LinkHandler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.CreateLinkInput{
		OriginalURL: req.OriginalURL,
	}
	if req.CustomShort != "" {
		input.CustomCode = &req.CustomShort
	}

	link, err := h.service.CreateLink(c.Request.Context(), input)
	if err != nil {
		h.respondCreateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ShortenResponse{
		OriginalURL: link.OriginalURL,
		ShortURL:    h.service.ShortURL(link.ShortCode),
		QRCodeURL:   link.QRCodeURL,
	})
}

func (h *LinkHandler) respondCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Original URL must be a valid absolute http(s) URL",
		})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_code",
			Message: "Custom code must be 1-32 characters of letters, digits, '-' or '_'",
		})
	case errors.Is(err, service.ErrCodeTaken):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "code_taken",
			Message: "Short code already exists, please choose another one",
		})
	case errors.Is(err, service.ErrGenerationExhausted):
		// Should effectively never happen; worth an operator's attention.
		h.logger.Error("Code generation exhausted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "generation_exhausted",
			Message: "Could not allocate a unique short code",
		})
	default:
		h.logger.Error("Failed to create link", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to create link",
		})
	}
}

// Redirect handles GET /:code, the hot path: 302 to the stored URL.
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	originalURL, err := h.service.Resolve(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Short URL not found",
			})
			return
		}
		h.logger.Error("Failed to resolve link", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve link",
		})
		return
	}

	c.Redirect(http.StatusFound, originalURL)
}

// GetLink handles GET /api/v1/links/:code, returning link metadata
// without triggering a redirect.
func (h *LinkHandler) GetLink(c *gin.Context) {
	code := c.Param("code")

	link, err := h.service.GetLink(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Short URL not found",
			})
			return
		}
		h.logger.Error("Failed to get link", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get link",
		})
		return
	}

	c.JSON(http.StatusOK, link)
}

// ListLinks handles GET /api/v1/links with limit/offset paging.
func (h *LinkHandler) ListLinks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	links, err := h.service.ListLinks(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list links", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list links",
		})
		return
	}

	c.JSON(http.StatusOK, links)
}

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "quickpath",
	})
}
