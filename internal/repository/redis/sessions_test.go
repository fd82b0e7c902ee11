package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Skillial/CSSECDV-Case-Study/internal/core/domain"
	"github.com/Skillial/CSSECDV-Case-Study/internal/repository"
)

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func testSession() domain.Session {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.Session{
		ID:        "session-1",
		AccountID: 42,
		Username:  "alice",
		Role:      domain.RoleCustomer,
		IP:        "10.0.0.1",
		CreatedAt: created,
		ExpiresAt: created.Add(30 * time.Minute),
	}
}

func TestSessionSaveAndGet(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client, "test:session")
	ctx := context.Background()

	session := testSession()
	if err := repo.Save(ctx, "hash-1", session, time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := repo.Get(ctx, "hash-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.AccountID != session.AccountID || got.Username != session.Username || got.Role != session.Role {
		t.Fatalf("got %+v, want %+v", got, session)
	}
}

func TestSessionGetMissing(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client, "test:session")

	if _, err := repo.Get(context.Background(), "absent"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionExpiresWithTTL(t *testing.T) {
	client, server := newTestClient(t)
	repo := NewSessionRepository(client, "test:session")
	ctx := context.Background()

	if err := repo.Save(ctx, "hash-1", testSession(), time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	server.FastForward(2 * time.Minute)

	if _, err := repo.Get(ctx, "hash-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestTakeLoginReportIsOneShot(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client, "test:session")
	ctx := context.Background()

	report := domain.LoginReport{
		Message:     "This is your first login.",
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.SetLoginReport(ctx, "hash-1", report, time.Minute); err != nil {
		t.Fatalf("SetLoginReport returned error: %v", err)
	}

	got, err := repo.TakeLoginReport(ctx, "hash-1")
	if err != nil {
		t.Fatalf("TakeLoginReport returned error: %v", err)
	}
	if got.Message != report.Message {
		t.Fatalf("message = %q, want %q", got.Message, report.Message)
	}

	if _, err := repo.TakeLoginReport(ctx, "hash-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second take, got %v", err)
	}
}

func TestDeleteRemovesSessionAndReport(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewSessionRepository(client, "test:session")
	ctx := context.Background()

	if err := repo.Save(ctx, "hash-1", testSession(), time.Minute); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := repo.SetLoginReport(ctx, "hash-1", domain.LoginReport{Message: "m"}, time.Minute); err != nil {
		t.Fatalf("SetLoginReport returned error: %v", err)
	}

	if err := repo.Delete(ctx, "hash-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, err := repo.Get(ctx, "hash-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("session must be gone, got %v", err)
	}
	if _, err := repo.TakeLoginReport(ctx, "hash-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("report must be gone, got %v", err)
	}
}
