// Package telemetry publishes run events over MQTT so an operator can watch
// a multi-hour experiment remotely. The publisher is read-only with respect
// to the run: it subscribes to the internal event bus and never feeds
// anything back into the execution engine.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/permealab/hcellrun/core/events"
	"github.com/permealab/hcellrun/infra/logger"
	"github.com/permealab/hcellrun/internal/eventbus"
)

// Config defines the connection parameters for the MQTT publisher.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "hcellrun"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "hcellrun"
	}
}

// Validate checks mandatory fields when telemetry is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("telemetry broker is required")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Publisher pushes run events to the broker as JSON payloads.
type Publisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// NewPublisher connects to the MQTT broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.ConnectTimeout = 10 * time.Second
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	log := logger.New("telemetry")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("telemetry connection lost: %v", err)
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Publisher{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: log}, nil
}

// Run forwards bus events to the broker until the context is canceled or
// the bus closes. Publish failures are logged, never propagated: telemetry
// must not interfere with the run.
func (p *Publisher) Run(ctx context.Context, bus eventbus.EventBus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			p.publish(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) publish(ev eventbus.Event) {
	var topic string
	switch e := ev.(type) {
	case events.StateEvent:
		topic = fmt.Sprintf("%s/%s/state", p.prefix, e.RunID)
	case events.IterationEvent:
		topic = fmt.Sprintf("%s/%s/iteration", p.prefix, e.Record.RunID)
	case events.DriftEvent:
		topic = fmt.Sprintf("%s/%s/drift", p.prefix, e.RunID)
	default:
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorf("marshal telemetry event: %v", err)
		return
	}
	if token := p.cli.Publish(topic, p.qos, false, payload); token.Wait() && token.Error() != nil {
		p.log.Errorf("publish %s: %v", topic, token.Error())
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.cli.Disconnect(250)
}
