// Package telemetry publishes orientation and calibration events over
// MQTT. Publish-only: no commands are accepted from the broker.
package telemetry

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ldurand/PointGo/internal/config"
	"github.com/ldurand/PointGo/internal/debug"
)

// Publisher wraps the MQTT client. A Publisher built from a config with
// no host is a no-op, so callers never need to branch on "enabled".
type Publisher struct {
	client  paho.Client
	enabled bool
	prefix  string
}

// Orientation is the periodic position report.
type Orientation struct {
	Azimuth          float64 `json:"azimuth"`
	Elevation        float64 `json:"elevation"`
	AzimuthTarget    float64 `json:"azimuth_target"`
	ElevationTarget  float64 `json:"elevation_target"`
	Tracking         bool    `json:"tracking"`
}

// Event is a one-off report (calibration milestones, faults).
type Event struct {
	Kind string `json:"kind"`
	Msg  string `json:"msg"`
	Time string `json:"time"`
}

// New creates a publisher. Returns a disabled no-op publisher when no
// host is configured.
func New(cfg config.TelemetryConfig, clientID string) (*Publisher, error) {
	p := &Publisher{prefix: cfg.TopicPrefix}

	if cfg.Host == "" {
		debug.Info("telemetry disabled (no MQTT host configured)")
		return p, nil
	}
	p.enabled = true

	var broker string
	var tlsConfig *tls.Config
	if cfg.CACert != "" || cfg.ClientCert != "" {
		port := cfg.Port
		if port == 0 {
			port = 8883
		}
		broker = fmt.Sprintf("ssl://%s:%d", cfg.Host, port)
		var err error
		tlsConfig, err = buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build TLS config: %w", err)
		}
	} else {
		port := cfg.Port
		if port == 0 {
			port = 1883
		}
		broker = fmt.Sprintf("tcp://%s:%d", cfg.Host, port)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second)
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	p.client = paho.NewClient(opts)
	return p, nil
}

func buildTLSConfig(cfg config.TelemetryConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		caPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect establishes the broker session. No-op when disabled.
func (p *Publisher) Connect() error {
	if !p.enabled {
		return nil
	}
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("telemetry: connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: connect: %w", err)
	}
	debug.Info("telemetry connected")
	return nil
}

// PublishOrientation reports the current and target pose.
func (p *Publisher) PublishOrientation(o Orientation) {
	p.publish("orientation", o)
}

// PublishEvent reports a one-off milestone.
func (p *Publisher) PublishEvent(kind, msg string) {
	p.publish("events", Event{Kind: kind, Msg: msg, Time: time.Now().Format(time.RFC3339)})
}

func (p *Publisher) publish(topic string, v interface{}) {
	if !p.enabled {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		debug.Error(fmt.Errorf("telemetry: marshal %s: %w", topic, err))
		return
	}
	// QoS 0, fire and forget: stale pose reports are worthless.
	p.client.Publish(p.prefix+"/"+topic, 0, false, payload)
}

// Close tears down the broker session.
func (p *Publisher) Close() {
	if p.enabled {
		p.client.Disconnect(250)
	}
}
