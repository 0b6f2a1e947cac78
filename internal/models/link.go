package models

import (
	"time"
)

// Link is the persisted mapping between a short code and an original URL.
// ShortCode and OriginalURL are immutable after creation; QRCodeURL is
// attached later by the QR pipeline and may be overwritten on retry.
type Link struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	QRCodeURL   string    `json:"qr_code_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateLinkInput struct {
	OriginalURL string  `json:"original_url" binding:"required"`
	CustomCode  *string `json:"custom_short,omitempty"`
}
