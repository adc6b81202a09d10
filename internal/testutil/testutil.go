// Package testutil provides fixtures shared by package tests: an in-memory
// SQLite database, a Redis-backed session store and an in-memory blob store.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/repositories"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewDB opens a migrated in-memory SQLite database closed at test end.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := repositories.OpenDatabase("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewSessionStore returns a session store backed by miniredis.
func NewSessionStore(t testing.TB) (*repositories.RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repositories.NewRedisSessionStore(client), mr
}

// Logger discards everything.
func Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// CreateUser inserts a user whose password is "password".
func CreateUser(t testing.TB, db *gorm.DB, username string, moderator bool) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Username: username, Password: string(hashed), IsStaff: moderator}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

var phoneSeq int
var phoneMu sync.Mutex

// CreateRecipient inserts an active recipient with a unique phone.
func CreateRecipient(t testing.TB, db *gorm.DB, name string) *models.Recipient {
	t.Helper()
	phoneMu.Lock()
	phoneSeq++
	phone := fmt.Sprintf("+7900%07d", phoneSeq)
	phoneMu.Unlock()

	r := &models.Recipient{Name: name, Phone: phone, City: "Moscow", Status: models.RecipientActive}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("create recipient %s: %v", name, err)
	}
	return r
}

// MemoryBlobStore keeps blobs in a map. Set FailPut or FailDelete to
// simulate an unavailable object store.
type MemoryBlobStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	seq        int
	FailPut    bool
	FailDelete bool
}

var ErrBlobUnavailable = errors.New("blob store unavailable")

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: map[string][]byte{}}
}

func (m *MemoryBlobStore) Put(_ context.Context, name string, body io.Reader, _ int64, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut {
		return "", ErrBlobUnavailable
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.seq++
	url := fmt.Sprintf("http://blobs.test/bucket/%d-%s", m.seq, name)
	m.objects[url] = data
	return url, nil
}

func (m *MemoryBlobStore) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete {
		return ErrBlobUnavailable
	}
	delete(m.objects, url)
	return nil
}

func (m *MemoryBlobStore) Has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}

func (m *MemoryBlobStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
