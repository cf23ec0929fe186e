// Package mqtt connects a node to the broker: it publishes tag and write
// status and turns control messages into commands.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gosrix/srix"
)

var pahoLoggersOnce sync.Once

// Config holds MQTT connection settings. An empty Host disables the client.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// Handlers receive broker events. Any of them may be nil.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func()
	OnCommand    func(Command)
}

// Client publishes node status and dispatches control commands. A client
// built without a host is disabled: publishing is dropped and Connect only
// reports a connection.
type Client struct {
	client   paho.Client
	topics   Topics
	handlers Handlers
	log      *zap.Logger
}

// New prepares a client for node clientID. It does not connect.
func New(cfg Config, clientID string, h Handlers, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{topics: Topics{ClientID: clientID}, handlers: h, log: log}
	if cfg.Host == "" {
		log.Info("MQTT disabled (no host configured)")
		return c, nil
	}

	broker, tlsConfig, err := brokerURL(cfg)
	if err != nil {
		return nil, err
	}
	if tlsConfig == nil {
		log.Warn("MQTT using non-TLS connection", zap.String("broker", broker))
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("MQTT connection lost", zap.Error(err))
			if c.handlers.OnDisconnect != nil {
				c.handlers.OnDisconnect()
			}
		}).
		SetOnConnectHandler(func(paho.Client) { c.connected() }).
		SetDefaultPublishHandler(func(_ paho.Client, msg paho.Message) {
			c.dispatch(msg.Topic(), msg.Payload())
		})
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	c.client = paho.NewClient(opts)

	// paho logs through package globals.
	pahoLoggersOnce.Do(func() {
		named := log.Named("paho")
		paho.ERROR = stdLogAt(named, zapcore.ErrorLevel)
		paho.CRITICAL = stdLogAt(named, zapcore.ErrorLevel)
		paho.WARN = stdLogAt(named, zapcore.WarnLevel)
	})
	return c, nil
}

// brokerURL picks ssl:// with a TLS config when certificates are configured,
// tcp:// otherwise. Ports default to 8883 and 1883.
func brokerURL(cfg Config) (string, *tls.Config, error) {
	if cfg.CACert == "" && cfg.ClientCert == "" {
		port := cfg.Port
		if port == 0 {
			port = 1883
		}
		return fmt.Sprintf("tcp://%s:%d", cfg.Host, port), nil, nil
	}

	port := cfg.Port
	if port == 0 {
		port = 8883
	}
	tc := &tls.Config{}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return "", nil, fmt.Errorf("read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return "", nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tc.RootCAs = pool
	}
	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return "", nil, fmt.Errorf("load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return fmt.Sprintf("ssl://%s:%d", cfg.Host, port), tc, nil
}

func stdLogAt(l *zap.Logger, level zapcore.Level) *log.Logger {
	std, err := zap.NewStdLogAt(l, level)
	if err != nil {
		return zap.NewStdLog(l)
	}
	return std
}

// Enabled reports whether a broker is configured.
func (c *Client) Enabled() bool {
	return c.client != nil
}

// Topics returns the node's topic names.
func (c *Client) Topics() Topics {
	return c.topics
}

// Connect blocks until the first connection succeeds or fails. A disabled
// client reports a connection right away.
func (c *Client) Connect() error {
	if !c.Enabled() {
		c.connected()
		return nil
	}
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	return nil
}

// connected subscribes to the control topics, then notifies the handler.
// paho calls it again after every reconnect.
func (c *Client) connected() {
	if c.Enabled() {
		c.log.Info("MQTT connection established")
		topic := c.topics.ControlWildcard()
		if token := c.client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
			c.log.Error("Subscribe", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}
	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}
}

// dispatch decodes a control message and hands it to OnCommand.
func (c *Client) dispatch(topic string, payload []byte) {
	cmd, err := c.topics.ParseCommand(topic, payload)
	if err != nil {
		c.log.Warn("Bad control message", zap.String("topic", topic), zap.Error(err))
		return
	}
	c.log.Debug("Control command", zap.String("action", string(cmd.Action)))
	if c.handlers.OnCommand != nil {
		c.handlers.OnCommand(cmd)
	}
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	if c.Enabled() {
		c.client.Disconnect(250)
	}
}

// PublishTag publishes a tag summary, with block contents when withBlocks is set.
func (c *Client) PublishTag(s srix.Snapshot, withBlocks bool) {
	c.publishJSON(c.topics.Tag(), NewTagStatus(s, withBlocks))
}

// PublishWrite publishes the outcome of a flush.
func (c *Client) PublishWrite(st WriteStatus) {
	c.publishJSON(c.topics.Write(), st)
}

// PublishPing publishes the periodic liveness message.
func (c *Client) PublishPing(state srix.State) {
	c.publishJSON(c.topics.Ping(), Ping{Status: "ok", State: state.String()})
}

func (c *Client) publishJSON(topic string, v any) {
	if !c.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error("Encode status", zap.String("topic", topic), zap.Error(err))
		return
	}
	c.client.Publish(topic, 0, false, b)
}
