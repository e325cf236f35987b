package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/shop-auth/internal/config"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

// Общие хелперы тестов пакета service:
//   - memUsers — потокобезопасное in-memory хранилище пользователей
//     с уникальностью username/email и CAS для refresh-токена;
//   - memMedia — in-memory хранилище медиа с инъекцией отказов;
//   - memCache — in-memory кэш принципалов.

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:  "unit-access-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenSecret: "unit-refresh-secret",
		RefreshTokenTTL:    time.Hour,
		Issuer:             "shop-auth",
		BcryptCost:         bcrypt.MinCost,
	}
}

func testMediaCfg() config.MediaConfig {
	return config.MediaConfig{Timeout: time.Second}
}

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.User

	createErr error
	verifyErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]models.User)}
}

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}

	for _, ex := range m.byID {
		if ex.Username == u.Username || ex.Email == u.Email {
			return storage.ErrAlreadyExists
		}
	}

	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.verifyErr != nil {
		return nil, m.verifyErr
	}

	u, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &u, nil
}

func (m *memUsers) UserByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.byID {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			u := u
			return &u, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (m *memUsers) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	_, err := m.UserByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return false, nil
	}

	return true, nil
}

func (m *memUsers) SetRefreshToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return storage.ErrNotFound
	}

	u.RefreshToken = token
	m.byID[id] = u
	return nil
}

func (m *memUsers) SwapRefreshToken(_ context.Context, id uuid.UUID, old, new string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok || old == "" || u.RefreshToken != old {
		return false, nil
	}

	u.RefreshToken = new
	m.byID[id] = u
	return true, nil
}

func (m *memUsers) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}

	delete(m.byID, id)
	return nil
}

func (m *memUsers) countByUsername(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, u := range m.byID {
		if u.Username == username {
			n++
		}
	}

	return n
}

func (m *memUsers) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.byID)
}

type memMedia struct {
	mu      sync.Mutex
	objects map[string]string

	// failFor — имена файлов, загрузка которых отклоняется.
	failFor map[string]error
	// block — загрузка ждёт отмены контекста.
	block bool
}

func newMemMedia() *memMedia {
	return &memMedia{objects: make(map[string]string), failFor: make(map[string]error)}
}

func (m *memMedia) Upload(ctx context.Context, f models.MediaFile) (models.MediaAsset, error) {
	if m.block {
		<-ctx.Done()
		return models.MediaAsset{}, ctx.Err()
	}

	if err := m.failFor[f.Name]; err != nil {
		return models.MediaAsset{}, err
	}

	b, err := io.ReadAll(f.Body)
	if err != nil {
		return models.MediaAsset{}, err
	}

	key := storage.MediaKey(f.ContentType)

	m.mu.Lock()
	m.objects[key] = string(b)
	m.mu.Unlock()

	return models.MediaAsset{URL: "http://cdn.test/" + key, PublicID: key}, nil
}

func (m *memMedia) Delete(_ context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, publicID)
	return nil
}

func (m *memMedia) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}

type memCache struct {
	mu      sync.Mutex
	items   map[uuid.UUID]models.PublicUser
	gets    int
	deletes int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[uuid.UUID]models.PublicUser)}
}

func (c *memCache) Get(_ context.Context, id uuid.UUID) (*models.PublicUser, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gets++
	u, ok := c.items[id]
	if !ok {
		return nil, false, nil
	}

	return &u, true, nil
}

func (c *memCache) Set(_ context.Context, u *models.PublicUser, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[u.ID] = *u
	return nil
}

func (c *memCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deletes++
	delete(c.items, id)
	return nil
}

func (c *memCache) Close() error { return nil }

func newMemService(t *testing.T) (*Service, *memUsers, *memMedia) {
	t.Helper()

	users := newMemUsers()
	media := newMemMedia()
	return New(users, media, testAuthCfg(), testMediaCfg()), users, media
}

func file(name, contentType, body string) *models.MediaFile {
	return &models.MediaFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func bobInput() RegisterInput {
	return RegisterInput{
		Username: "bob",
		Email:    "bob@x.com",
		FullName: "Bob Builder",
		Password: "pw123",
		Avatar:   file("fileA.png", "image/png", "avatar-bytes"),
	}
}

// mustRegister регистрирует пользователя и возвращает его ID.
func mustRegister(t *testing.T, svc *Service, in RegisterInput) uuid.UUID {
	t.Helper()

	pu, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	return pu.ID
}
