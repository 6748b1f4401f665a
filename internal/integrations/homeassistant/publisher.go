package homeassistant

import (
	"time"

	log "github.com/sirupsen/logrus"

	"facegate/internal/capture"
)

// MatchEvent wird pro erkannter Identität unter <prefix>/matches/<label> veröffentlicht
type MatchEvent struct {
	Label       string    `json:"label"`
	DeviceIndex int       `json:"device_index"`
	Distance    *float64  `json:"distance"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher veröffentlicht Identifikationen als Home-Assistant-Sensorzustände
type Publisher struct {
	mqtt      MQTTPublisher
	discovery *DiscoveryManager
	events    chan capture.Event
}

// NewPublisher erstellt einen neuen Publisher; Run muss gestartet werden
func NewPublisher(mqtt MQTTPublisher, discovery *DiscoveryManager) *Publisher {
	return &Publisher{
		mqtt:      mqtt,
		discovery: discovery,
		events:    make(chan capture.Event, 32),
	}
}

// Notify nimmt ein Ereignis entgegen, ohne zu blockieren
func (p *Publisher) Notify(evt capture.Event) {
	if evt.Type != capture.EventIdentify || evt.Status != string(capture.MatchSuccess) {
		return
	}
	select {
	case p.events <- evt:
	default:
		log.Warn("Home Assistant publisher queue full, dropping event")
	}
}

// Run veröffentlicht Ereignisse, bis stop geschlossen wird
func (p *Publisher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case evt := <-p.events:
			p.publishMatch(evt)
		}
	}
}

func (p *Publisher) publishMatch(evt capture.Event) {
	if err := p.discovery.RegisterIdentity(evt.Label); err != nil {
		log.Warnf("Failed to register sensor for %s: %v", evt.Label, err)
	}

	topic := p.mqtt.Topic("matches/" + NormalizeLabel(evt.Label))
	match := MatchEvent{
		Label:       evt.Label,
		DeviceIndex: evt.DeviceIndex,
		Distance:    evt.Distance,
		Timestamp:   evt.Timestamp,
	}
	if err := p.mqtt.Publish(topic, match); err != nil {
		log.Warnf("Failed to publish match result: %v", err)
	}
}
