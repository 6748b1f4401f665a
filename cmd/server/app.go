package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"facegate/config"
	"facegate/internal/capture"
	"facegate/internal/database"
	"facegate/internal/db/repository"
	"facegate/internal/integrations/facerecognition"
	"facegate/internal/integrations/homeassistant"
	"facegate/internal/integrations/mqtt"
	"facegate/internal/integrations/opencv"
	"facegate/internal/integrations/provider"
	"facegate/internal/integrations/v4l2"
	"facegate/internal/preview"
	"facegate/internal/sse"
	"facegate/internal/storage"
)

// catalogApp holds what every subcommand needs: the catalog and the file store.
type catalogApp struct {
	db    *gorm.DB
	repo  *repository.GormRepository
	store *storage.FileStore
}

func openCatalog(cfg *config.Config) (*catalogApp, error) {
	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, err
	}

	store, err := storage.New(cfg.Storage.ImageDir, cfg.Storage.EmbeddingDir)
	if err != nil {
		database.Close(db)
		return nil, err
	}

	return &catalogApp{db: db, repo: repository.NewGormRepository(db), store: store}, nil
}

func (a *catalogApp) Close() {
	if err := database.Close(a.db); err != nil {
		log.Warnf("Failed to close database: %v", err)
	}
}

// removalService is a capture service that can only remove identities; it
// never touches a camera.
func (a *catalogApp) removalService() *capture.Service {
	return capture.NewService(capture.Dependencies{Catalog: a.repo, Store: a.store}, capture.Options{})
}

// serverApp is the fully wired service behind `facegate serve`.
type serverApp struct {
	*catalogApp
	provider facerecognition.Provider
	service  *capture.Service
	registry *preview.Registry
	hub      *sse.Hub
	mqtt     *mqtt.Client

	// nil unless mqtt.homeassistant is enabled
	discovery *homeassistant.DiscoveryManager
	haPub     *homeassistant.Publisher
}

func buildServer(cfg *config.Config) (*serverApp, error) {
	catalog, err := openCatalog(cfg)
	if err != nil {
		return nil, err
	}

	oracle, err := provider.New(cfg.Embedding)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	backends, err := cameraBackends(cfg.Camera)
	if err != nil {
		oracle.Close()
		catalog.Close()
		return nil, err
	}

	busy, err := capture.ParseBusyPolicy(cfg.Camera.BusyPolicy)
	if err != nil {
		oracle.Close()
		catalog.Close()
		return nil, err
	}
	multiFace, err := capture.ParseMultiFacePolicy(cfg.Capture.MultiFacePolicy)
	if err != nil {
		oracle.Close()
		catalog.Close()
		return nil, err
	}

	hub := sse.NewHub()
	mqttClient := mqtt.NewClient(cfg.MQTT)
	registry := preview.NewRegistry(opencv.OverlayRenderer{})

	notifiers := capture.Notifiers{hub, mqttClient}
	var (
		discovery *homeassistant.DiscoveryManager
		haPub     *homeassistant.Publisher
	)
	if cfg.MQTT.Enabled && cfg.MQTT.HomeAssistant {
		discovery = homeassistant.NewDiscoveryManager(mqttClient, Version)
		haPub = homeassistant.NewPublisher(mqttClient, discovery)
		notifiers = append(notifiers, haPub)
	}

	service := capture.NewService(capture.Dependencies{
		Acquirer: capture.NewAcquirer(backends, capture.AcquirerOptions{
			ProbeWindow:   cfg.Camera.ProbeWindow,
			ProbeInterval: cfg.Camera.ProbeInterval,
		}),
		Locks:     capture.NewDeviceLocks(busy),
		Searcher:  capture.NewSearcher(oracle, multiFace),
		Previewer: capture.NewPreviewer(oracle),
		Writer:    capture.NewWriter(catalog.repo, catalog.store),
		Matcher:   capture.NewMatcher(catalog.repo, catalog.store),
		Catalog:   catalog.repo,
		Store:     catalog.store,
		Sessions:  registry,
		Notifier:  notifiers,
	}, capture.Options{
		WarmupFrames:    cfg.Camera.WarmupFrames,
		PreviewWindow:   cfg.Capture.PreviewWindow,
		DefaultMinWidth: cfg.Capture.MinWidth,
		EnrollTimeout:   seconds(cfg.Capture.TimeoutSec),
		IdentifyTimeout: seconds(cfg.Capture.IdentifyTimeoutSec),
		Tolerance:       cfg.Match.Tolerance,
	})

	return &serverApp{
		catalogApp: catalog,
		provider:   oracle,
		service:    service,
		registry:   registry,
		hub:        hub,
		mqtt:       mqttClient,
		discovery:  discovery,
		haPub:      haPub,
	}, nil
}

func (a *serverApp) Close() {
	a.mqtt.Stop()
	if err := a.provider.Close(); err != nil {
		log.Warnf("Failed to close embedding provider: %v", err)
	}
	a.catalogApp.Close()
}

// cameraBackends builds the open strategies in configured order. "webcam"
// selects raw V4L2 access; every other name is an OpenCV capture API.
func cameraBackends(cfg config.CameraConfig) ([]capture.Backend, error) {
	backends := make([]capture.Backend, 0, len(cfg.Backends))
	for _, name := range cfg.Backends {
		if name == "webcam" {
			backends = append(backends, v4l2.NewBackend(cfg.ReadTimeout))
			continue
		}
		b, err := opencv.NewBackend(name, cfg.ReadTimeout)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no camera backends configured")
	}
	return backends, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// configSummary lists the effective settings shown on /status. Credentials are left out.
func configSummary(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"camera_backends":   cfg.Camera.Backends,
		"busy_policy":       cfg.Camera.BusyPolicy,
		"multi_face_policy": cfg.Capture.MultiFacePolicy,
		"min_width":         cfg.Capture.MinWidth,
		"timeout_sec":       cfg.Capture.TimeoutSec,
		"identify_timeout":  cfg.Capture.IdentifyTimeoutSec,
		"preview_window":    cfg.Capture.PreviewWindow.String(),
		"tolerance":         cfg.Match.Tolerance,
		"provider":          cfg.Embedding.Provider,
		"db_driver":         cfg.DB.Driver,
		"mqtt_enabled":      cfg.MQTT.Enabled,
		"cleanup_enabled":   cfg.Cleanup.Enabled,
	}
}

var (
	_ capture.Catalog         = (*repository.GormRepository)(nil)
	_ capture.FileStore       = (*storage.FileStore)(nil)
	_ capture.PreviewSessions = (*preview.Registry)(nil)
	_ capture.Notifier        = (*sse.Hub)(nil)
	_ capture.Notifier        = (*mqtt.Client)(nil)
	_ capture.Notifier        = (*homeassistant.Publisher)(nil)
)
