package mqtt

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/prite36/watering-control/internal/models"
)

const publishTimeout = 5 * time.Second

// Client handles the MQTT connection to the watering devices: it publishes
// pump commands and keeps the latest status report per device.
//
// DeviceStatuses holds immutable models.PumpDeviceStatus values; every update
// stores a fresh snapshot and readers get a copy, so no goroutine ever shares
// a mutable struct with the paho callback.
type Client struct {
	client         mqtt.Client
	DeviceStatuses sync.Map // device ID -> models.PumpDeviceStatus
}

// NewClient creates and connects a new MQTT Client.
func NewClient(broker, clientID, username, password string) (*Client, error) {
	c := &Client{}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetDefaultPublishHandler(c.messageHandler)
	opts.OnConnect = c.connectHandler
	opts.OnConnectionLost = c.connectionLostHandler

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.client = client
	return c, nil
}

func (c *Client) connectHandler(client mqtt.Client) {
	log.Println("Connected to MQTT broker")
}

func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Printf("Connection to MQTT broker lost: %v", err)
}

// messageHandler folds incoming status reports into the per-device snapshot.
func (c *Client) messageHandler(client mqtt.Client, msg mqtt.Message) {
	topicParts := strings.Split(msg.Topic(), "/")
	if len(topicParts) < 2 {
		log.Printf("Ignoring message from unexpected topic: %s", msg.Topic())
		return
	}
	deviceID := topicParts[0]

	status := models.PumpDeviceStatus{DeviceID: deviceID}
	if value, ok := c.DeviceStatuses.Load(deviceID); ok {
		status = value.(models.PumpDeviceStatus)
	}

	payloadStr := string(msg.Payload())

	switch {
	case strings.HasSuffix(msg.Topic(), "/pump/status/state"):
		status.PumpOn = payloadStr == "on"
	case strings.HasSuffix(msg.Topic(), "/moisture/status/level"):
		level, err := strconv.ParseFloat(payloadStr, 64)
		if err != nil {
			log.Printf("Bad moisture payload %q on %s: %v", payloadStr, msg.Topic(), err)
			return
		}
		status.MoistureLevel = level
		status.MoistureSeen = true
	default:
		log.Printf("No handler for topic: %s", msg.Topic())
		return
	}

	status.LastReport = time.Now()
	c.DeviceStatuses.Store(deviceID, status)
}

// SubscribeToDeviceTopics subscribes to the status topics for a device.
func (c *Client) SubscribeToDeviceTopics(deviceID string) {
	topics := map[string]byte{
		fmt.Sprintf("%s/pump/status/state", deviceID):     1,
		fmt.Sprintf("%s/moisture/status/level", deviceID): 1,
	}

	if token := c.client.SubscribeMultiple(topics, nil); token.Wait() && token.Error() != nil {
		log.Printf("Failed to subscribe to topics for device %s: %v", deviceID, token.Error())
		return
	}

	log.Printf("Subscribed to all topics for device: %s", deviceID)
}

// GetDeviceStatus retrieves the latest status snapshot for a device. The
// returned value is a copy; later reports never mutate it.
func (c *Client) GetDeviceStatus(deviceID string) (models.PumpDeviceStatus, bool) {
	value, ok := c.DeviceStatuses.Load(deviceID)
	if !ok {
		return models.PumpDeviceStatus{}, false
	}
	return value.(models.PumpDeviceStatus), true
}

// PublishPumpControl sends an on/off command to a device's pump and waits for
// the broker to accept it, bounded by publishTimeout.
func (c *Client) PublishPumpControl(deviceID string, on bool) error {
	payload := "off"
	if on {
		payload = "on"
	}
	topic := fmt.Sprintf("%s/pump/control/turn", deviceID)

	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("error publishing to topic %s: %w", topic, token.Error())
	}

	log.Printf("Published '%s' to topic '%s'", payload, topic)
	return nil
}

// Close disconnects the MQTT client.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

// PumpActuator binds the client to a single device's pump so the device state
// machine can drive it without knowing about topics.
type PumpActuator struct {
	client   *Client
	deviceID string
}

func NewPumpActuator(client *Client, deviceID string) *PumpActuator {
	return &PumpActuator{client: client, deviceID: deviceID}
}

func (a *PumpActuator) PumpOn(ctx context.Context) error {
	return a.client.PublishPumpControl(a.deviceID, true)
}

func (a *PumpActuator) PumpOff(ctx context.Context) error {
	return a.client.PublishPumpControl(a.deviceID, false)
}
