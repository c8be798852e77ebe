// Package notify forwards provisioning outcomes to an MQTT broker.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/provision"
)

const queueSize = 64

// Config configures the MQTT publisher.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	Retain         bool
	ConnectTimeout time.Duration
}

// Message is the JSON document published for each outcome.
type Message struct {
	RequestID  uint64                  `json:"request_id"`
	Operation  string                  `json:"operation"`
	Success    bool                    `json:"success"`
	SSID       string                  `json:"ssid,omitempty"`
	IP         string                  `json:"ip,omitempty"`
	Networks   []provision.NetworkInfo `json:"networks,omitempty"`
	Error      string                  `json:"error,omitempty"`
	ClientID   string                  `json:"client_id,omitempty"`
	DurationMS int64                   `json:"duration_ms"`
	Timestamp  time.Time               `json:"timestamp"`
}

// NewMessage converts an outcome into its published form.
func NewMessage(o provision.Outcome) Message {
	m := Message{
		RequestID:  o.RequestID,
		Operation:  o.Op.String(),
		Success:    o.Success(),
		SSID:       o.SSID,
		Error:      provision.WireMessage(o.Err),
		ClientID:   o.Origin.ClientID,
		DurationMS: o.Duration.Milliseconds(),
		Timestamp:  o.Started.Add(o.Duration).UTC(),
	}
	if o.Connect != nil {
		m.IP = o.Connect.IP
	}
	if o.Scan != nil {
		m.Networks = o.Scan.Networks
	}
	return m
}

// Topic returns the topic an outcome is published on.
func Topic(prefix string, op provision.Operation) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = "wifiprov"
	}
	return prefix + "/" + op.String()
}

type sender interface {
	send(topic string, payload []byte) error
	close()
}

// Publisher implements provision.Publisher. Outcomes are queued and sent
// from a background goroutine; when the queue is full they are dropped.
type Publisher struct {
	cfg    Config
	sender sender
	queue  chan provision.Outcome
	done   chan struct{}
	once   sync.Once
}

var _ provision.Publisher = (*Publisher)(nil)

// Dial connects to cfg.Broker and starts the publish loop.
func Dial(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "wifiprov-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logging.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logging.Info("MQTT connected", zap.String("broker", cfg.Broker))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(cfg.ConnectTimeout) {
		// ConnectRetry keeps trying in the background.
		logging.Warn("MQTT broker not reachable yet", zap.String("broker", cfg.Broker))
	} else if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}

	return newPublisher(cfg, &pahoSender{client: client, qos: cfg.QoS, retain: cfg.Retain, timeout: cfg.ConnectTimeout}), nil
}

func newPublisher(cfg Config, s sender) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		sender: s,
		queue:  make(chan provision.Outcome, queueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Publish queues o without blocking.
func (p *Publisher) Publish(o provision.Outcome) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- o:
	default:
		logging.Warn("MQTT queue full, dropping outcome", zap.Uint64("request_id", o.RequestID))
	}
}

// Close stops the publish loop and disconnects.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.done)
	})
}

func (p *Publisher) loop() {
	defer p.sender.close()
	for {
		select {
		case <-p.done:
			return
		case o := <-p.queue:
			p.send(o)
		}
	}
}

func (p *Publisher) send(o provision.Outcome) {
	payload, err := json.Marshal(NewMessage(o))
	if err != nil {
		logging.Error("Failed to encode outcome", zap.Error(err))
		return
	}
	topic := Topic(p.cfg.TopicPrefix, o.Op)
	if err := p.sender.send(topic, payload); err != nil {
		logging.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	logging.Debug("Outcome published", zap.String("topic", topic), zap.Uint64("request_id", o.RequestID))
}

type pahoSender struct {
	client  mqtt.Client
	qos     byte
	retain  bool
	timeout time.Duration
}

func (s *pahoSender) send(topic string, payload []byte) error {
	tok := s.client.Publish(topic, s.qos, s.retain, payload)
	if !tok.WaitTimeout(s.timeout) {
		return errors.New("publish timed out")
	}
	return tok.Error()
}

func (s *pahoSender) close() {
	s.client.Disconnect(250)
}
