package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/SwarupAusarkar/QuickPath/internal/storage"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrQRRender = errors.New("failed to render QR code")
	ErrQRUpload = errors.New("failed to upload QR code")
)

const (
	qrImageSize   = 256
	qrContentType = "image/png"
	qrKeyPrefix   = "qr/"
)

// QRProducer renders a QR image for a short URL and stores it in blob
// storage, returning a retrievable URL. Callers treat failures as
// non-fatal: a link is valid without its QR image.
type QRProducer interface {
	RenderAndStore(ctx context.Context, shortCode, shortURL string) (string, error)
}

type qrProducer struct {
	store storage.ObjectStorage
}

func NewQRProducer(store storage.ObjectStorage) QRProducer {
	return &qrProducer{store: store}
}

func (p *qrProducer) RenderAndStore(ctx context.Context, shortCode, shortURL string) (string, error) {
	png, err := qrcode.Encode(shortURL, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRRender, err)
	}

	key := qrKeyPrefix + shortCode + ".png"
	url, err := p.store.Upload(ctx, key, png, qrContentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRUpload, err)
	}

	return url, nil
}
