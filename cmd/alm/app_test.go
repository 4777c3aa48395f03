package main

import (
	"errors"
	"testing"

	"github.com/zulandar/almanac/internal/db"
	"gorm.io/gorm"
)

func TestOpenApp_ClosesStoreWhenIndexFails(t *testing.T) {
	path := writeConfig(t)
	unreachable := errors.New("index unreachable")

	var store *gorm.DB
	orig := connectDB
	t.Cleanup(func() { connectDB = orig })
	connectDB = func(ep db.Endpoint) (*gorm.DB, error) {
		if store != nil {
			return nil, unreachable
		}
		g, err := orig(ep)
		store = g
		return g, err
	}

	a, err := openApp(path)
	if !errors.Is(err, unreachable) {
		t.Fatalf("openApp err = %v, want %v", err, unreachable)
	}
	if a != nil {
		t.Error("openApp returned an app on error")
	}
	if store == nil {
		t.Fatal("store was never opened")
	}
	sqlDB, err := store.DB()
	if err != nil {
		t.Fatal(err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Error("store connection still open after openApp failed")
	}
}

func TestOpenApp_CloseReleasesConnections(t *testing.T) {
	a, err := openApp(writeConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	a.close()
	for name, g := range map[string]*gorm.DB{"store": a.store, "index": a.indexDB} {
		sqlDB, err := g.DB()
		if err != nil {
			t.Fatal(err)
		}
		if err := sqlDB.Ping(); err == nil {
			t.Errorf("%s connection still open after close", name)
		}
	}
}
