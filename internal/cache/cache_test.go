package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/destinyjobs/portal/internal/apperr"
	"github.com/destinyjobs/portal/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "portal-cache-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM last_known`).Scan(&count); err != nil {
		t.Fatalf("last_known table missing: %v", err)
	}
}

func TestPutAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	in := models.NotificationStats{Total: 3, Unread: 2, ByType: map[string]int{"message": 2}}
	if err := db.Put(ctx, "u1", "notifications", in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var out models.NotificationStats
	at, err := db.Get(ctx, "u1", "notifications", &out)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Unread != 2 || out.ByType["message"] != 2 {
		t.Errorf("out = %+v", out)
	}
	if at.IsZero() {
		t.Error("updated_at should be set")
	}

	in.Unread = 1
	if err := db.Put(ctx, "u1", "notifications", in); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if _, err := db.Get(ctx, "u1", "notifications", &out); err != nil || out.Unread != 1 {
		t.Errorf("after overwrite unread = %d, err = %v", out.Unread, err)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)
	var out models.Avatar
	if _, err := db.Get(context.Background(), "nobody", "avatar", &out); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Put(ctx, "u1", "avatar", models.Avatar{URL: "http://x/a.png"})
	_ = db.Put(ctx, "u2", "avatar", models.Avatar{URL: "http://x/b.png"})

	n, err := db.Prune(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("Prune(1h) = %d, %v; fresh rows must stay", n, err)
	}

	n, err = db.Prune(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}
	var out models.Avatar
	if _, err := db.Get(ctx, "u1", "avatar", &out); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("u1 should be gone, err = %v", err)
	}
}
