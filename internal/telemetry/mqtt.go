// Package telemetry publishes game server events to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/events"
	"github.com/scc-project/scc/internal/util"
)

// Topic suffixes, published under <prefix>/<server name>/.
const (
	TopicStatus   = "status"
	TopicSessions = "sessions"
	TopicHands    = "hands"
	TopicErrors   = "errors"
	TopicOnline   = "online"
)

// MQTTHandler manages the MQTT connection and publishes telemetry events.
type MQTTHandler struct {
	mu sync.Mutex

	cfg      *config.Config
	eventBus *events.EventBus
	client   mqtt.Client
	logger   zerolog.Logger

	prefix string

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus) (*MQTTHandler, error) {
	mqttCfg := cfg.MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	srv := cfg.GetServer()
	sysInfo := util.GetSystemInfo()

	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		logger:   log.With().Str("component", "mqtt").Logger(),
		prefix:   TopicPrefix(mqttCfg.TopicPrefix, srv.Name),
		metadata: map[string]interface{}{
			"server":    srv.Name,
			"hostname":  sysInfo.Hostname,
			"os":        sysInfo.OS,
			"game_port": srv.Port,
			"mode":      srv.Mode,
		},
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("scc-%s-%d", sysInfo.Hostname, srv.Port))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	// The broker announces us offline if we vanish without a goodbye.
	will, _ := json.Marshal(handler.buildMessage(map[string]interface{}{"online": false}))
	opts.SetWill(handler.topic(TopicOnline), string(will), 1, true)

	if mqttCfg.UseTLS {
		tlsConfig, err := loadTLSConfig(mqttCfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		handler.logger.Info().Msg("MQTT connected")
		handler.publishOnline(true)
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		handler.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)

	return handler, nil
}

func loadTLSConfig(mqttCfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	// mTLS: load client certificate
	if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if mqttCfg.CAFile != "" {
		pem, err := os.ReadFile(mqttCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", mqttCfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// TopicPrefix joins the configured prefix and the server name.
func TopicPrefix(prefix, serverName string) string {
	if prefix == "" {
		prefix = "scc"
	}
	if serverName == "" {
		serverName = "default"
	}
	return prefix + "/" + serverName
}

func (h *MQTTHandler) topic(suffix string) string {
	return h.prefix + "/" + suffix
}

// Start connects to the MQTT broker and publishes events until ctx is
// cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("broker", h.cfg.MQTT.BrokerURL).
		Int("port", h.cfg.MQTT.Port).
		Str("prefix", h.prefix).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.unsubscribeEvents()
	h.PublishShutdown()
	h.client.Disconnect(5000)
	h.logger.Info().Msg("MQTT disconnected")

	return nil
}

var subscriptions = []struct {
	event events.EventType
	name  string
}{
	{events.EventServerStatus, "mqtt.serverStatus"},
	{events.EventSessionStarted, "mqtt.sessionStarted"},
	{events.EventSessionEnded, "mqtt.sessionEnded"},
	{events.EventHandFinished, "mqtt.handFinished"},
	{events.EventProtocolError, "mqtt.protocolError"},
}

func (h *MQTTHandler) subscribeEvents() {
	for _, s := range subscriptions {
		h.eventBus.Subscribe(s.event, s.name, h.onEvent)
	}
}

func (h *MQTTHandler) unsubscribeEvents() {
	for _, s := range subscriptions {
		h.eventBus.Unsubscribe(s.event, s.name)
	}
}

// TopicFor maps an event type to its topic suffix.
func TopicFor(t events.EventType) (string, bool) {
	switch t {
	case events.EventServerStatus:
		return TopicStatus, true
	case events.EventSessionStarted, events.EventSessionEnded:
		return TopicSessions, true
	case events.EventHandFinished:
		return TopicHands, true
	case events.EventProtocolError:
		return TopicErrors, true
	}
	return "", false
}

func (h *MQTTHandler) onEvent(ctx context.Context, event events.Event) error {
	suffix, ok := TopicFor(event.Type)
	if !ok {
		return nil
	}
	h.publish(h.topic(suffix), false, map[string]interface{}{
		"event":   string(event.Type),
		"payload": event.Payload,
	})
	return nil
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, retained bool, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.client.IsConnected() {
		return
	}

	data, err := json.Marshal(h.buildMessage(payload))
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, retained, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

func (h *MQTTHandler) publishOnline(online bool) {
	h.publish(h.topic(TopicOnline), true, map[string]interface{}{"online": online})
}

// PublishShutdown marks the server offline on the broker.
func (h *MQTTHandler) PublishShutdown() {
	h.publishOnline(false)
}
