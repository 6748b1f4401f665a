package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Match     MatchConfig     `mapstructure:"match"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

// ServerConfig enthält Server-bezogene Einstellungen
type ServerConfig struct {
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	DataDir       string   `mapstructure:"data_dir"`
	Timezone      string   `mapstructure:"timezone"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
	SessionSecret string   `mapstructure:"session_secret"` // signiert das Sprach-Cookie; leer = zufällig pro Start
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen
type DBConfig struct {
	Driver       string `mapstructure:"driver"`   // "sqlite" oder "mysql"
	File         string `mapstructure:"file"`     // für SQLite
	Username     string `mapstructure:"username"` // für MySQL/MariaDB
	Password     string `mapstructure:"password"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// StorageConfig enthält die Ablageorte für Bilder und Embeddings
type StorageConfig struct {
	ImageDir     string `mapstructure:"image_dir"`
	EmbeddingDir string `mapstructure:"embedding_dir"`
}

// CameraConfig enthält Einstellungen zum Öffnen der Kamera
type CameraConfig struct {
	Backends      []string      `mapstructure:"backends"`       // Reihenfolge der Öffnungsstrategien
	ProbeWindow   time.Duration `mapstructure:"probe_window"`   // max. Wartezeit auf das erste Bild
	ProbeInterval time.Duration `mapstructure:"probe_interval"` // Pause zwischen Probe-Lesevorgängen
	WarmupFrames  int           `mapstructure:"warmup_frames"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	BusyPolicy    string        `mapstructure:"busy_policy"` // "wait" oder "fail"
}

// CaptureConfig enthält Standardwerte für Aufnahme und Identifikation
type CaptureConfig struct {
	TimeoutSec         float64       `mapstructure:"timeout_sec"`
	IdentifyTimeoutSec float64       `mapstructure:"identify_timeout_sec"`
	MinWidth           int           `mapstructure:"min_width"`
	PreviewWindow      time.Duration `mapstructure:"preview_window"`
	MultiFacePolicy    string        `mapstructure:"multi_face_policy"` // "wait" oder "fail_fast"
}

// MatchConfig enthält Einstellungen für den Abgleich
type MatchConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

// EmbeddingConfig wählt den Embedding-Provider
type EmbeddingConfig struct {
	Provider    string            `mapstructure:"provider"` // "insightface", "compreface" oder "dlib"
	InsightFace InsightFaceConfig `mapstructure:"insightface"`
	CompreFace  CompreFaceConfig  `mapstructure:"compreface"`
	Dlib        DlibConfig        `mapstructure:"dlib"`
}

// InsightFaceConfig enthält Einstellungen für die InsightFace-REST-API
type InsightFaceConfig struct {
	URL              string        `mapstructure:"url"`
	DetProbThreshold float64       `mapstructure:"det_prob_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// CompreFaceConfig enthält Einstellungen für die CompreFace-Detection-API
type CompreFaceConfig struct {
	URL              string        `mapstructure:"url"`
	DetectionAPIKey  string        `mapstructure:"detection_api_key"`
	DetProbThreshold float64       `mapstructure:"det_prob_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// DlibConfig enthält den Pfad zu den dlib-Modellen
type DlibConfig struct {
	ModelDir string `mapstructure:"model_dir"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Broker        string `mapstructure:"broker"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	ClientID      string `mapstructure:"client_id"`
	TopicPrefix   string `mapstructure:"topic_prefix"`
	HomeAssistant bool   `mapstructure:"homeassistant"` // MQTT-Discovery-Sensoren für Home Assistant
}

// CleanupConfig enthält Bereinigungseinstellungen
type CleanupConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	OrphanGraceMinutes int  `mapstructure:"orphan_grace_minutes"`
	IntervalMinutes    int  `mapstructure:"interval_minutes"`
}

// I18nConfig enthält Spracheinstellungen
type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

// Load lädt die Konfiguration aus .env, Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	// .env ist optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env file: %v", err)
	}

	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.SetEnvPrefix("FACEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Sicherstellen, dass erforderliche Verzeichnisse existieren
	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate prüft Werte, die nicht sinnvoll über Standardwerte abgefangen werden können
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	if len(c.Camera.Backends) == 0 {
		return fmt.Errorf("camera.backends must list at least one strategy")
	}
	if c.Match.Tolerance <= 0 {
		return fmt.Errorf("match.tolerance must be positive, got %v", c.Match.Tolerance)
	}
	if c.Capture.TimeoutSec <= 0 || c.Capture.IdentifyTimeoutSec <= 0 {
		return fmt.Errorf("capture timeouts must be positive")
	}
	return nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.data_dir", "/data")
	v.SetDefault("server.timezone", "UTC")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/facegate.log")

	// DB-Standardwerte
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.file", "/data/facegate.db")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 3306)
	v.SetDefault("db.username", "root")
	v.SetDefault("db.name", "face_db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)

	// Ablage-Standardwerte
	v.SetDefault("storage.image_dir", "/data/images")
	v.SetDefault("storage.embedding_dir", "/data/embeddings")

	// Kamera-Standardwerte
	v.SetDefault("camera.backends", []string{"any", "v4l2", "webcam"})
	v.SetDefault("camera.probe_window", 2*time.Second)
	v.SetDefault("camera.probe_interval", 50*time.Millisecond)
	v.SetDefault("camera.warmup_frames", 3)
	v.SetDefault("camera.read_timeout", time.Second)
	v.SetDefault("camera.busy_policy", "wait")

	// Aufnahme-Standardwerte
	v.SetDefault("capture.timeout_sec", 8.0)
	v.SetDefault("capture.identify_timeout_sec", 5.0)
	v.SetDefault("capture.min_width", 320)
	v.SetDefault("capture.preview_window", 20*time.Second)
	v.SetDefault("capture.multi_face_policy", "wait")

	// Abgleich-Standardwerte
	v.SetDefault("match.tolerance", 0.45)

	// Embedding-Standardwerte
	v.SetDefault("embedding.provider", "insightface")
	v.SetDefault("embedding.insightface.url", "http://localhost:18080")
	v.SetDefault("embedding.insightface.det_prob_threshold", 0.5)
	v.SetDefault("embedding.insightface.timeout", 10*time.Second)
	v.SetDefault("embedding.compreface.url", "http://localhost:8000")
	v.SetDefault("embedding.compreface.det_prob_threshold", 0.8)
	v.SetDefault("embedding.compreface.timeout", 10*time.Second)
	v.SetDefault("embedding.dlib.model_dir", "/data/models")

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "facegate")
	v.SetDefault("mqtt.topic_prefix", "facegate")
	v.SetDefault("mqtt.homeassistant", false)

	// Cleanup-Standardwerte
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.orphan_grace_minutes", 60)
	v.SetDefault("cleanup.interval_minutes", 30)

	// Sprach-Standardwerte
	v.SetDefault("i18n.default_language", "en")
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	// Daten-Basisverzeichnis
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Bild- und Embedding-Verzeichnis
	for _, dir := range []string{cfg.Storage.ImageDir, cfg.Storage.EmbeddingDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}

	// Log-Verzeichnis
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	// Datenbank-Verzeichnis (für SQLite)
	if cfg.DB.Driver == "sqlite" && cfg.DB.File != "" && cfg.DB.File != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.File), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
