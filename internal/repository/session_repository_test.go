package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hostbridge/hostbridge/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Session{}, &domain.Relationship{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSessionRepositoryFindActiveFiltersExpired(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	active := &domain.Session{UserID: 1, TokenHash: "h1", ExpiresAt: time.Now().Add(2 * time.Hour)}
	expired := &domain.Session{UserID: 1, TokenHash: "h2", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := repo.Create(active); err != nil {
		t.Fatalf("create active: %v", err)
	}
	if err := repo.Create(expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}

	got, err := repo.FindActiveByTokenHash("h1")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if got.UserID != 1 {
		t.Fatalf("unexpected session %+v", got)
	}

	if _, err := repo.FindActiveByTokenHash("h2"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound for expired row, got %v", err)
	}
	if _, err := repo.FindActiveByTokenHash("absent"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound for absent row, got %v", err)
	}
}

func TestSessionRepositoryDeleteByTokenHashIdempotent(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	s := &domain.Session{UserID: 1, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.DeleteByTokenHash("h1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindActiveByTokenHash("h1"); err != ErrSessionNotFound {
		t.Fatalf("expected session gone, got %v", err)
	}
	if err := repo.DeleteByTokenHash("h1"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if err := repo.DeleteByTokenHash("never-existed"); err != nil {
		t.Fatalf("deleting absent hash should be a no-op: %v", err)
	}
}

func TestSessionRepositoryHasActiveByUserID(t *testing.T) {
	repo := NewSessionRepository(newTestDB(t))

	if err := repo.Create(&domain.Session{UserID: 7, TokenHash: "x1", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("create expired: %v", err)
	}

	online, err := repo.HasActiveByUserID(7)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if online {
		t.Fatal("expected offline with only an expired session")
	}

	if err := repo.Create(&domain.Session{UserID: 7, TokenHash: "x2", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create active: %v", err)
	}
	online, err = repo.HasActiveByUserID(7)
	if err != nil {
		t.Fatalf("has active: %v", err)
	}
	if !online {
		t.Fatal("expected online with a live session")
	}
}

// Expired rows accumulate until explicitly reaped; verification only
// filters them out.
func TestSessionRepositoryExpiredRowsAccumulateUntilReaped(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)

	for i := 0; i < 3; i++ {
		s := &domain.Session{UserID: 1, TokenHash: fmt.Sprintf("old-%d", i), ExpiresAt: time.Now().Add(-time.Hour)}
		if err := repo.Create(s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.Create(&domain.Session{UserID: 1, TokenHash: "live", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("create live: %v", err)
	}

	var total int64
	if err := db.Model(&domain.Session{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected expired rows to be retained, got %d rows", total)
	}

	reaped, err := repo.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if reaped != 3 {
		t.Fatalf("expected 3 reaped rows, got %d", reaped)
	}
	if _, err := repo.FindActiveByTokenHash("live"); err != nil {
		t.Fatalf("live session should survive reaping: %v", err)
	}
}
