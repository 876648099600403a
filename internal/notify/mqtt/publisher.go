// Package mqtt announces saved check-ins on an MQTT broker so other devices
// can react to a new mood entry.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"moodcheck/internal/domain"
	"moodcheck/internal/logger"
)

const publishTimeout = 5 * time.Second

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Publisher implements ports.CheckInListener.
type Publisher struct {
	client paho.Client
	prefix string
	log    *slog.Logger
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(cfg Config, log *slog.Logger) (*Publisher, error) {
	log = logger.OrDefault(log).With("broker", cfg.Broker)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) { log.Info("mqtt connected") })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) { log.Warn("mqtt connection lost", "error", err) })

	client := paho.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}
	return NewPublisher(client, cfg.TopicPrefix, log), nil
}

func NewPublisher(client paho.Client, prefix string, log *slog.Logger) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "moodcheck"
	}
	return &Publisher{client: client, prefix: prefix, log: logger.OrDefault(log)}
}

type checkInMessage struct {
	ID           string    `json:"id"`
	MoodTitle    string    `json:"moodTitle,omitempty"`
	EmotionLabel string    `json:"emotionLabel,omitempty"`
	EnergyLevel  *int      `json:"energyLevel,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Topic is {prefix}/{userID}/checkins.
func (p *Publisher) Topic(userID string) string {
	return p.prefix + "/" + userID + "/checkins"
}

func (p *Publisher) CheckInSaved(ctx context.Context, record domain.CheckInRecord) error {
	msg := checkInMessage{
		ID:           record.ID,
		EmotionLabel: record.EmotionLabel,
		EnergyLevel:  record.EnergyLevel,
		CreatedAt:    record.CreatedAt,
	}
	if record.MoodTitle != nil {
		msg.MoodTitle = *record.MoodTitle
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode check-in message: %w", err)
	}

	topic := p.Topic(record.UserID)
	token := p.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debug("check-in published", "topic", topic)
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
