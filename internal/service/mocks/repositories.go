package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SwarupAusarkar/QuickPath/internal/models"
	"github.com/SwarupAusarkar/QuickPath/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing.
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link
	nextID int64

	// ForceExists makes Exists report every code as taken, to exercise
	// generation exhaustion.
	ForceExists bool
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	link.ID = m.nextID
	m.nextID++
	stored := *link
	m.links[link.ShortCode] = &stored
	return nil
}

func (m *MockLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) Exists(ctx context.Context, code string) (bool, error) {
	if m.ForceExists {
		return true, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.links[code]
	return exists, nil
}

func (m *MockLinkRepository) AttachQRCodeURL(ctx context.Context, code, qrURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.QRCodeURL = qrURL
	return nil
}

func (m *MockLinkRepository) List(ctx context.Context, limit, offset int) ([]*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*models.Link, 0, len(m.links))
	for _, link := range m.links {
		copied := *link
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*models.Link{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.nextID = 1
}

// MockCacheRepository implements repository.CacheRepository for testing.
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *link
	m.cache[code] = &stored
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, code)
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}

// ErrUploadUnavailable simulates a blob-storage collaborator outage.
var ErrUploadUnavailable = errors.New("storage unavailable")

// MockObjectStorage implements storage.ObjectStorage for testing.
type MockObjectStorage struct {
	mu          sync.RWMutex
	objects     map[string][]byte
	failUploads bool

	BaseURL string
}

func NewMockObjectStorage() *MockObjectStorage {
	return &MockObjectStorage{
		objects: make(map[string][]byte),
		BaseURL: "https://storage.test/qr-codes",
	}
}

// SetFailUploads toggles simulated outages; safe to call while QR workers
// are running.
func (m *MockObjectStorage) SetFailUploads(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUploads = fail
}

func (m *MockObjectStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUploads {
		return "", ErrUploadUnavailable
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = stored
	return m.BaseURL + "/" + key, nil
}

// Object returns the stored bytes for key, if any.
func (m *MockObjectStorage) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *MockObjectStorage) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = make(map[string][]byte)
}
