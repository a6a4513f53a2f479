package container

import (
	"time"

	"github.com/merchpulse/merchpulse/config"
	"github.com/merchpulse/merchpulse/pkg/abandoned"
	"github.com/merchpulse/merchpulse/pkg/api/handlers"
	"github.com/merchpulse/merchpulse/pkg/cache"
	"github.com/merchpulse/merchpulse/pkg/database"
	"github.com/merchpulse/merchpulse/pkg/domain"
	"github.com/merchpulse/merchpulse/pkg/exclusion"
	"github.com/merchpulse/merchpulse/pkg/geoip"
	"github.com/merchpulse/merchpulse/pkg/jobs"
	"github.com/merchpulse/merchpulse/pkg/logger"
	"github.com/merchpulse/merchpulse/pkg/metrics"
	"github.com/merchpulse/merchpulse/pkg/store"
	"github.com/merchpulse/merchpulse/pkg/tracking"
	"github.com/merchpulse/merchpulse/pkg/useragent"
)

// Container holds all application dependencies. Caches and connections are
// owned here, not by package-level singletons.
type Container struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Infrastructure
	DB    *database.Client
	Cache *cache.Client

	// Collaborators
	Geo        domain.GeoResolver
	Classifier domain.UAClassifier
	Exclusions *exclusion.Service

	// Engine
	Pipeline *tracking.Service
	Scanner  *abandoned.Scanner
	Cron     *jobs.CronManager

	// Repositories
	Accounts domain.AccountRepository

	// Handlers
	TrackHandler  *handlers.TrackHandler
	JobsHandler   *handlers.JobsHandler
	HealthHandler *handlers.HealthHandler

	geoCloser *geoip.Resolver
}

// New creates and initializes all application dependencies
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger.New(cfg.LogLevel),
		Metrics: metrics.New(),
	}

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	c.initEngine()
	c.initHandlers()

	c.Logger.Info("Container initialized successfully",
		"environment", cfg.APIEnvironment,
		"database", "connected",
		"cache", "connected")

	return c, nil
}

// initInfrastructure initializes database, cache and geo connections
func (c *Container) initInfrastructure() error {
	var err error

	c.DB, err = database.NewClient(c.Config.DatabaseURL)
	if err != nil {
		c.Logger.Error("Failed to connect to database", "error", err)
		return err
	}

	c.Cache, err = cache.NewClient(c.Config.RedisURL)
	if err != nil {
		c.Logger.Error("Failed to connect to Redis", "error", err)
		return err
	}

	if c.Config.GeoIPDBPath != "" {
		geoCache := cache.NewNamespace(c.Cache, "geo",
			time.Duration(c.Config.GeoCacheTTLSec)*time.Second)
		resolver, err := geoip.New(c.Config.GeoIPDBPath, geoCache, c.Logger)
		if err != nil {
			c.Logger.Error("Failed to open GeoIP database", "error", err)
			return err
		}
		c.Geo = resolver
		c.geoCloser = resolver
	} else {
		c.Logger.Warn("GeoIP disabled (no database configured)")
		c.Geo = geoip.Noop{}
	}

	return nil
}

// initEngine wires the repositories into the tracking pipeline and scanner
func (c *Container) initEngine() {
	sessions := store.NewSessionStore(c.DB.DB)
	visits := store.NewVisitStore(c.DB.DB)
	events := store.NewEventStore(c.DB.DB)
	automations := store.NewAutomationStore(c.DB.DB)
	enrollments := store.NewEnrollmentStore(c.DB.DB)
	exclusions := store.NewExclusionStore(c.DB.DB)
	c.Accounts = store.NewAccountStore(c.DB.DB)

	c.Classifier = useragent.New()

	exclusionCache := cache.NewNamespace(c.Cache, "exclusions",
		time.Duration(c.Config.ExclusionCacheTTLSec)*time.Second)
	c.Exclusions = exclusion.NewService(exclusions, exclusionCache, c.Logger)

	filter := tracking.NewFilter(c.Classifier, c.Exclusions)
	enricher := tracking.NewEnricher(c.Geo, c.Classifier, c.Logger)
	segmenter := tracking.NewSegmenter(visits,
		time.Duration(c.Config.VisitGapMinutes)*time.Minute)

	c.Pipeline = tracking.NewService(sessions, events, filter, enricher, segmenter, c.Logger)
	c.Scanner = abandoned.NewScanner(automations, sessions, enrollments,
		c.Config.ScannerBatchLimit, c.Config.AbandonedThresholdMinutes, c.Logger)
	c.Cron = jobs.NewCronManager(c.Scanner, c.Metrics, c.Logger)
}

func (c *Container) initHandlers() {
	c.TrackHandler = handlers.NewTrackHandler(c.Accounts, c.Pipeline, c.Metrics, c.Logger)
	c.JobsHandler = handlers.NewJobsHandler(c.Scanner, c.Config.JobsToken, c.Logger)
	c.HealthHandler = handlers.NewHealthHandler(c.DB, c.Cache)
}

// Close releases all owned connections.
func (c *Container) Close() {
	if c.geoCloser != nil {
		c.geoCloser.Close()
	}
	if c.Cache != nil {
		c.Cache.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
