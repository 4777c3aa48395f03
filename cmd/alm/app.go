package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/zulandar/almanac/internal/bucket"
	"github.com/zulandar/almanac/internal/calsync"
	"github.com/zulandar/almanac/internal/config"
	"github.com/zulandar/almanac/internal/db"
	"github.com/zulandar/almanac/internal/event"
	"github.com/zulandar/almanac/internal/journal"
	"github.com/zulandar/almanac/internal/notify"
	"github.com/zulandar/almanac/internal/operation"
	"github.com/zulandar/almanac/internal/reindex"
	"github.com/zulandar/almanac/internal/search"
	"github.com/zulandar/almanac/internal/task"
	"github.com/zulandar/almanac/internal/wiki"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

// app is every service wired to the configured store and index.
type app struct {
	cfg        *config.Config
	store      *gorm.DB
	index      *search.GormIndex
	sync       *search.Synchronizer
	calendar   *calsync.Engine
	buckets    bucket.Classifier
	operations *operation.Service
	tasks      *task.Service
	events     *event.Service
	wikis      *wiki.Service
	journal    *journal.Service
	reindexer  *reindex.Reindexer
	indexDB    *gorm.DB
	closeLog   func()
}

// connectDB opens a configured database. Tests swap it to inject failures.
var connectDB = db.Connect

// openApp loads the config, connects both databases, migrates them and
// wires the services. On error every connection opened so far is closed.
func openApp(configPath string) (_ *app, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var opened []*gorm.DB
	defer func() {
		if err != nil {
			closeDB(opened...)
		}
	}()

	store, err := connectDB(db.StoreEndpoint(cfg))
	if err != nil {
		return nil, err
	}
	opened = append(opened, store)
	if err := db.AutoMigrate(store); err != nil {
		return nil, err
	}
	indexDB, err := connectDB(db.IndexEndpoint(cfg))
	if err != nil {
		return nil, err
	}
	opened = append(opened, indexDB)
	if err := search.Migrate(indexDB); err != nil {
		return nil, err
	}

	channel, err := notify.FromConfig(store, cfg.Alerts)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		indexDB:  indexDB,
		index:    search.NewGormIndex(indexDB),
		buckets:  bucket.Classifier{WeekStart: cfg.WeekStartDay(), Location: cfg.Location()},
		closeLog: setupLogging(cfg.Log),
	}
	a.sync = search.NewSynchronizer(a.index, channel)
	a.calendar = calsync.New(store, a.sync, calsync.PolicyFor(cfg.Calendar.ClearDueDate), cfg.Calendar.DefaultSource)
	a.tasks = &task.Service{DB: store, Index: a.sync, Calendar: a.calendar, Buckets: a.buckets}
	a.events = &event.Service{DB: store, Index: a.sync, Calendar: a.calendar}
	a.wikis = &wiki.Service{DB: store, Index: a.sync}
	a.journal = &journal.Service{DB: store, Index: a.sync}
	a.operations = &operation.Service{DB: store, Index: a.sync, Tasks: a.tasks, Events: a.events, Wikis: a.wikis}
	a.reindexer = &reindex.Reindexer{Store: store, Index: a.index, BatchSize: cfg.Reindex.BatchSize}
	return a, nil
}

// close releases both connections and the log file.
func (a *app) close() {
	closeDB(a.store, a.indexDB)
	a.closeLog()
}

func closeDB(gdbs ...*gorm.DB) {
	for _, g := range gdbs {
		if sqlDB, err := g.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// loc is the zone dates are parsed and printed in.
func (a *app) loc() *time.Location {
	return a.cfg.Location()
}

// setupLogging sends the standard logger to a rotated file when one is
// configured. The returned func closes the file.
func setupLogging(cfg config.LogConfig) func() {
	if cfg.File == "" {
		return func() {}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(lj)
	return func() {
		log.SetOutput(os.Stderr)
		lj.Close()
	}
}
