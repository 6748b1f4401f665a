package homeassistant

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Konstanten für Home Assistant MQTT Discovery
const (
	// Discovery-Präfix für Home Assistant (Standard ist "homeassistant")
	DiscoveryPrefix = "homeassistant"

	// Component-Typ für Sensoren
	ComponentSensor = "sensor"

	// Node-ID für facegate
	NodeID = "facegate"
)

// MQTTPublisher ist der Teil des MQTT-Clients, den die Integration benötigt
type MQTTPublisher interface {
	Publish(topic string, payload interface{}) error
	PublishRetain(topic string, payload interface{}) error
	Topic(suffix string) string
}

// SensorConfig repräsentiert die MQTT-Discovery-Konfiguration für einen Sensor in Home Assistant
type SensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	Icon                string  `json:"icon,omitempty"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	ValueTemplate       string  `json:"value_template,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryManager verwaltet die Home Assistant MQTT Discovery
type DiscoveryManager struct {
	mqtt       MQTTPublisher
	device     *Device
	registered map[string]bool
	mutex      sync.Mutex
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(mqtt MQTTPublisher, version string) *DiscoveryManager {
	return &DiscoveryManager{
		mqtt: mqtt,
		device: &Device{
			Identifiers:  []string{"facegate"},
			Name:         "facegate",
			Manufacturer: "facegate",
			Model:        "Camera face gate",
			SWVersion:    version,
		},
		registered: make(map[string]bool),
	}
}

// RegisterBaseSensors veröffentlicht die Sensoren für die letzte Identifikation und Aufnahme
func (dm *DiscoveryManager) RegisterBaseSensors() error {
	sensors := map[string]SensorConfig{
		"last_identified": {
			Name:                "facegate last identified",
			UniqueID:            "facegate_last_identified",
			StateTopic:          dm.mqtt.Topic("identify"),
			JSONAttributesTopic: dm.mqtt.Topic("identify"),
			ValueTemplate:       "{{ value_json.label if value_json.status == 'success' else value_json.status }}",
			Icon:                "mdi:face-recognition",
		},
		"last_enrollment": {
			Name:                "facegate last enrollment",
			UniqueID:            "facegate_last_enrollment",
			StateTopic:          dm.mqtt.Topic("enroll"),
			JSONAttributesTopic: dm.mqtt.Topic("enroll"),
			ValueTemplate:       "{{ value_json.label | default('anonymous') }}",
			Icon:                "mdi:account-plus",
		},
	}

	var errs []string
	for id, sensor := range sensors {
		if err := dm.publish(id, sensor); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to register base sensors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RegisterIdentities veröffentlicht Discovery-Konfigurationen für alle Identitäten
func (dm *DiscoveryManager) RegisterIdentities(labels []string) {
	for _, label := range labels {
		if err := dm.RegisterIdentity(label); err != nil {
			log.Errorf("Failed to register sensor for identity %s: %v", label, err)
		}
	}
}

// RegisterIdentity registriert einen Sensor für eine Identität, sofern noch nicht geschehen
func (dm *DiscoveryManager) RegisterIdentity(label string) error {
	id := NormalizeLabel(label)

	dm.mutex.Lock()
	if dm.registered[id] {
		dm.mutex.Unlock()
		return nil
	}
	dm.mutex.Unlock()

	sensor := SensorConfig{
		Name:                fmt.Sprintf("facegate %s", label),
		UniqueID:            fmt.Sprintf("facegate_%s", id),
		StateTopic:          dm.mqtt.Topic("matches/" + id),
		JSONAttributesTopic: dm.mqtt.Topic("matches/" + id),
		ValueTemplate:       "{{ value_json.device_index }}", // Kamera als State verwenden
		Icon:                "mdi:account",
	}
	if err := dm.publish(id, sensor); err != nil {
		return err
	}

	dm.mutex.Lock()
	dm.registered[id] = true
	dm.mutex.Unlock()
	log.Infof("Registered Home Assistant sensor for identity: %s", label)
	return nil
}

func (dm *DiscoveryManager) publish(objectID string, sensor SensorConfig) error {
	sensor.AvailabilityTopic = dm.mqtt.Topic("status")
	sensor.PayloadAvailable = "online"
	sensor.PayloadNotAvailable = "offline"
	sensor.Device = dm.device

	topic := fmt.Sprintf("%s/%s/%s/%s/config", DiscoveryPrefix, ComponentSensor, NodeID, objectID)
	if err := dm.mqtt.PublishRetain(topic, sensor); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}
	return nil
}

// NormalizeLabel macht ein Label topic-tauglich (Kleinbuchstaben, Unterstriche)
func NormalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '+', '#', '-':
			return '_'
		}
		return r
	}, label)
}
