package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ProgressEvent is one pipeline progress notification published for
// collaborators: tier transitions, merged batches, and load completion.
type ProgressEvent struct {
	Kind      string `json:"kind"` // "tier_changed", "batch_merged", "load_complete"
	Tier      string `json:"tier"`
	BatchSize int    `json:"batchSize,omitempty"`
	StoreSize int    `json:"storeSize"`
	Timestamp int64  `json:"timestamp"`
}

// ProgressPublisher publishes pipeline progress to MQTT. The stream
// producer itself carries no loading state; this is how progress is
// signaled externally. If client is nil, publishing is disabled.
type ProgressPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewProgressPublisher creates a progress publisher. The topic prefix
// defaults to "censusmesh" and can be overridden via MQTT_PUBLISH_PREFIX
// or the prefix argument.
func NewProgressPublisher(client mqtt.Client, prefix string) *ProgressPublisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "censusmesh"
	}
	return &ProgressPublisher{
		client: client,
		prefix: prefix,
		qos:    0, // progress is fire and forget
	}
}

// TierChanged publishes a tier transition event.
func (p *ProgressPublisher) TierChanged(tier Tier, storeSize int) {
	p.publish(ProgressEvent{
		Kind:      "tier_changed",
		Tier:      tier.String(),
		StoreSize: storeSize,
		Timestamp: time.Now().Unix(),
	})
}

// BatchMerged publishes a merged-batch event.
func (p *ProgressPublisher) BatchMerged(tier Tier, batchSize, storeSize int) {
	p.publish(ProgressEvent{
		Kind:      "batch_merged",
		Tier:      tier.String(),
		BatchSize: batchSize,
		StoreSize: storeSize,
		Timestamp: time.Now().Unix(),
	})
}

// LoadComplete publishes a load-complete event.
func (p *ProgressPublisher) LoadComplete(tier Tier, storeSize int) {
	p.publish(ProgressEvent{
		Kind:      "load_complete",
		Tier:      tier.String(),
		StoreSize: storeSize,
		Timestamp: time.Now().Unix(),
	})
}

func (p *ProgressPublisher) publish(event ProgressEvent) {
	if p == nil || p.client == nil || !p.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling progress event: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/progress/%s", p.prefix, event.Kind)
	token := p.client.Publish(topic, p.qos, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("Error publishing progress to %s: %v", topic, token.Error())
		}
	}()
}
