// Package telemetry publishes session activity to observers: Prometheus
// metrics for scraping and MQTT messages for remote dashboards.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/rconsole-project/rconsole/internal/config"
	"github.com/rconsole-project/rconsole/internal/events"
)

// MQTT topics
const (
	TopicSession  = "rconsole/session"
	TopicCommands = "rconsole/commands"
)

// MQTTHandler manages the MQTT connection and publishes session events.
type MQTTHandler struct {
	cfg      config.MQTTConfig
	eventBus *events.Bus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg config.MQTTConfig, eventBus *events.Bus) (*MQTTHandler, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	hostname, _ := os.Hostname()
	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: map[string]interface{}{
			"hostname": hostname,
			"app":      "rconsole",
		},
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("rconsole-%s", hostname))
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		if cfg.CAFile != "" {
			caPEM, err := os.ReadFile(cfg.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no certificates found in MQTT CA file %s", cfg.CAFile)
			}
			tlsConfig.RootCAs = pool
		}

		// mTLS: load client certificate
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}

		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)

	return handler, nil
}

// Start connects to the MQTT broker and publishes events until ctx is
// cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	log.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.publishShutdown()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

// subscribeEvents registers event handlers for MQTT publishing.
func (h *MQTTHandler) subscribeEvents() {
	h.eventBus.Subscribe(events.EventConnected, "mqtt.connected", h.onSession("connected"))
	h.eventBus.Subscribe(events.EventDisconnected, "mqtt.disconnected", h.onSession("disconnected"))
	h.eventBus.Subscribe(events.EventAuthenticated, "mqtt.authenticated", h.onSession("authenticated"))
	h.eventBus.Subscribe(events.EventAuthFailed, "mqtt.authFailed", h.onSession("auth_failed"))
	h.eventBus.Subscribe(events.EventCommandExecuted, "mqtt.commandExecuted", h.onCommand)
	h.eventBus.Subscribe(events.EventCommandFailed, "mqtt.commandFailed", h.onCommand)
}

func (h *MQTTHandler) onSession(state string) events.HandlerFunc {
	return func(ctx context.Context, event events.Event) error {
		h.publish(TopicSession, map[string]interface{}{
			"state":   state,
			"payload": event.Payload,
		})
		return nil
	}
}

func (h *MQTTHandler) onCommand(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommandPayload)
	if !ok {
		return nil
	}
	h.publish(TopicCommands, map[string]interface{}{
		"server":      payload.Address,
		"command":     payload.Command,
		"ok":          payload.OK(),
		"error":       payload.Error,
		"duration_ms": payload.Duration.Milliseconds(),
	})
	return nil
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	msg := h.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{})

	for k, v := range h.metadata {
		msg[k] = v
	}

	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return msg
}

// publishShutdown announces a clean shutdown to the broker.
func (h *MQTTHandler) publishShutdown() {
	h.publish(TopicSession, map[string]interface{}{
		"state":     "shutdown",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
