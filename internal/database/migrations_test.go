package database

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/game-tracker/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"games", "custom_lists"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestRunMigrationsRepairsTrackingFields(t *testing.T) {
	db := openTestDB(t)

	// Rows written by older versions, bypassing model defaults
	rows := []struct {
		id, status, list string
		rating           int
	}{
		{"a", "", "", 3},
		{"b", "playing", "Co-op", 9},
		{"c", "COMPLETED", "None", -2},
		{"d", "Abandoned", "None", 4},
		{"e", "Wishlist", "None", 5},
	}
	for _, r := range rows {
		err := db.Exec(
			`INSERT INTO games (id, external_id, title, status, list, user_rating) VALUES (?, ?, ?, ?, ?, ?)`,
			r.id, "ext-"+r.id, "Game "+r.id, r.status, r.list, r.rating,
		).Error
		if err != nil {
			t.Fatalf("insert %s: %v", r.id, err)
		}
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	// Running twice must be harmless
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	want := map[string]struct {
		status models.GameStatus
		list   string
		rating int
	}{
		"a": {models.StatusPending, models.NoList, 3},
		"b": {models.StatusPlaying, "Co-op", 5},
		"c": {models.StatusCompleted, models.NoList, 0},
		"d": {models.StatusPending, models.NoList, 4},
		"e": {models.StatusWishlist, models.NoList, 5},
	}

	var games []models.Game
	if err := db.Find(&games).Error; err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(games) != len(want) {
		t.Fatalf("expected %d games, got %d", len(want), len(games))
	}
	for _, g := range games {
		w := want[g.ID]
		if g.Status != w.status || g.List != w.list || g.UserRating != w.rating {
			t.Errorf("game %s = (%s, %s, %d), want (%s, %s, %d)", g.ID, g.Status, g.List, g.UserRating, w.status, w.list, w.rating)
		}
	}
}

func TestUniqueIndexesReportDuplicateKey(t *testing.T) {
	db := openTestDB(t)

	first := models.Game{ID: "a", ExternalID: "620", Title: "Portal 2"}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	dup := models.Game{ID: "b", ExternalID: "620", Title: "Portal 2"}
	if err := db.Create(&dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("duplicate external_id: got %v, want ErrDuplicatedKey", err)
	}

	if err := db.Create(&models.CustomList{ID: "l1", Name: "Backlog"}).Error; err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := db.Create(&models.CustomList{ID: "l2", Name: "Backlog"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("duplicate list name: got %v, want ErrDuplicatedKey", err)
	}
}

func TestRunMigrationsLogsListBackfillFailure(t *testing.T) {
	// Raw schema without AutoMigrate, where the list backfill violates a constraint
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	stmts := []string{
		`CREATE TABLE games (id TEXT PRIMARY KEY, status TEXT, list TEXT CHECK (list <> 'None'), user_rating INTEGER)`,
		`INSERT INTO games (id, status, list, user_rating) VALUES ('a', 'Pending', '', 0)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Failed to backfill empty game lists") {
		t.Errorf("expected a warning for the failed backfill, got %q", buf.String())
	}
}
