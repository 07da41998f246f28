package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"motionrecorder/internal/session"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	drainTimeout   = 5 * time.Second
	queueSize      = 16
)

type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

type event struct {
	topic  string
	report *session.Report
}

// MQTT publishes session boundaries as JSON reports. Events are queued and
// delivered by a single worker so the recording loop never waits on the
// broker. A full queue drops the event and counts it as failed.
type MQTT struct {
	cfg    Config
	client mqtt.Client
	log    log.FieldLogger

	queue chan event
	done  chan struct{}

	mu        sync.Mutex
	closed    bool
	published uint64
	errors    uint64
}

func NewMQTT(cfg Config, logger log.FieldLogger) *MQTT {
	m := &MQTT{
		cfg:   cfg,
		log:   logger.WithField("broker", cfg.Broker),
		queue: make(chan event, queueSize),
		done:  make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		m.log.Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.log.WithError(err).Warn("MQTT connection lost, will auto-reconnect")
	}

	m.client = mqtt.NewClient(opts)

	go m.worker()

	return m
}

func (m *MQTT) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connection to %s timed out", m.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (m *MQTT) SessionStarted(report *session.Report) {
	m.publish("started", report)
}

func (m *MQTT) SessionEnded(report *session.Report) {
	m.publish("ended", report)
}

// Counts returns the number of published and failed messages.
func (m *MQTT) Counts() (uint64, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published, m.errors
}

// Close delivers what is still queued, waiting at most drainTimeout, and
// disconnects. Events published after Close are counted as failed.
func (m *MQTT) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	select {
	case <-m.done:
	case <-time.After(drainTimeout):
		m.log.WithField("pending", len(m.queue)).Warn("Gave up draining session events")
	}

	m.client.Disconnect(250)
}

func (m *MQTT) topic(name string) string {
	prefix := strings.TrimSuffix(m.cfg.TopicPrefix, "/")
	return fmt.Sprintf("%s/session/%s", prefix, name)
}

func (m *MQTT) publish(name string, report *session.Report) {
	ev := event{topic: m.topic(name), report: report}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.errors++
		m.log.WithField("topic", ev.topic).Warn("Publisher closed, dropping session event")
		return
	}

	select {
	case m.queue <- ev:
	default:
		m.errors++
		m.log.WithFields(log.Fields{"topic": ev.topic, "session": report.UUID}).
			Warn("Session event queue full, dropping event")
	}
}

func (m *MQTT) worker() {
	defer close(m.done)
	for ev := range m.queue {
		m.deliver(ev)
	}
}

func (m *MQTT) deliver(ev event) {
	entry := m.log.WithFields(log.Fields{"topic": ev.topic, "session": ev.report.UUID})

	if err := m.send(ev.topic, ev.report); err != nil {
		m.mu.Lock()
		m.errors++
		m.mu.Unlock()
		entry.WithError(err).Warn("Unable to publish session event")
		return
	}

	m.mu.Lock()
	m.published++
	m.mu.Unlock()
	entry.Debug("Session event published")
}

func (m *MQTT) send(topic string, report *session.Report) error {
	payload, err := report.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	token := m.client.Publish(topic, m.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}
