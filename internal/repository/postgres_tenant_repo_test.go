package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hitoshi/menudigital/internal/database"
	"github.com/hitoshi/menudigital/internal/model"
)

func TestPostgresTenantRepo_ImplementsInterface(t *testing.T) {
	var _ TenantRepository = (*PostgresTenantRepo)(nil)
	var _ DishRepository = (*PostgresDishRepo)(nil)
}

func TestNullHelpers(t *testing.T) {
	if nullTime(nil).Valid {
		t.Error("nullTime(nil) should be invalid")
	}
	now := time.Now()
	if nt := nullTime(&now); !nt.Valid || !nt.Time.Equal(now) {
		t.Error("nullTime(&now) should carry the value")
	}
	if nullString(nil).Valid {
		t.Error("nullString(nil) should be invalid")
	}
	ref := "tx-1"
	if ns := nullString(&ref); !ns.Valid || ns.String != "tx-1" {
		t.Error("nullString(&ref) should carry the value")
	}
}

// setupPostgres はマイグレーション済みのテスト用DBを返す。接続できない場合はスキップする。
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE tenants CASCADE`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	return db
}

func TestPostgresTenantRepo_Integration(t *testing.T) {
	db := setupPostgres(t)
	repo := NewPostgresTenantRepo(db)
	ctx := context.Background()

	expiresAt := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Microsecond)
	tn := newTenant(uuid.NewString(), "chez@nous.test", "chez-nous")
	tn.SubscriptionExpiresAt = &expiresAt

	if err := repo.Create(ctx, tn); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	t.Run("重複メールアドレスはErrDuplicateEmail", func(t *testing.T) {
		dup := newTenant(uuid.NewString(), "chez@nous.test", "other")
		if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("got %v, want ErrDuplicateEmail", err)
		}
	})

	t.Run("重複スラッグはErrDuplicateSlug", func(t *testing.T) {
		dup := newTenant(uuid.NewString(), "other@nous.test", "chez-nous")
		if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicateSlug) {
			t.Errorf("got %v, want ErrDuplicateSlug", err)
		}
	})

	t.Run("バージョン不一致のSaveはErrConcurrentUpdate", func(t *testing.T) {
		a, err := repo.FindBySlug(ctx, "chez-nous")
		if err != nil || a == nil {
			t.Fatalf("FindBySlug = %v, %v", a, err)
		}
		b, _ := repo.FindByEmail(ctx, "chez@nous.test")

		a.SubscriptionStatus = model.StatusExpired
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
		b.SubscriptionTier = model.TierMonthly
		if err := repo.Save(ctx, b); !errors.Is(err, ErrConcurrentUpdate) {
			t.Errorf("got %v, want ErrConcurrentUpdate", err)
		}

		stored, _ := repo.FindByID(ctx, tn.ID)
		if stored.SubscriptionStatus != model.StatusExpired || stored.SubscriptionTier != model.TierFree {
			t.Errorf("stored = %s/%s, want expired/free", stored.SubscriptionStatus, stored.SubscriptionTier)
		}
		if stored.SubscriptionExpiresAt == nil || !stored.SubscriptionExpiresAt.Equal(expiresAt) {
			t.Errorf("SubscriptionExpiresAt = %v, want %v", stored.SubscriptionExpiresAt, expiresAt)
		}
	})

	t.Run("見つからない場合はnil", func(t *testing.T) {
		got, err := repo.FindByID(ctx, uuid.NewString())
		if err != nil || got != nil {
			t.Errorf("got %v, %v; want nil, nil", got, err)
		}
	})
}
