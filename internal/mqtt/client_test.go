package mqtt

import (
	"fmt"
	"sync"
	"testing"
)

// fakeMessage implements the paho Message interface for handler tests.
type fakeMessage struct {
	topic   string
	payload string
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return []byte(m.payload) }
func (m fakeMessage) Ack()              {}

func TestMessageHandlerFoldsStatusReports(t *testing.T) {
	c := &Client{}

	c.messageHandler(nil, fakeMessage{topic: "pump_01/moisture/status/level", payload: "17.5"})
	c.messageHandler(nil, fakeMessage{topic: "pump_01/pump/status/state", payload: "on"})

	status, ok := c.GetDeviceStatus("pump_01")
	if !ok {
		t.Fatal("expected a status snapshot for pump_01")
	}
	if !status.MoistureSeen || status.MoistureLevel != 17.5 {
		t.Errorf("moisture not folded: %+v", status)
	}
	if !status.PumpOn {
		t.Errorf("pump state not folded: %+v", status)
	}
	if status.LastReport.IsZero() {
		t.Error("LastReport not stamped")
	}
}

func TestMessageHandlerIgnoresBadInput(t *testing.T) {
	c := &Client{}

	c.messageHandler(nil, fakeMessage{topic: "pump_01/moisture/status/level", payload: "soggy"})
	if _, ok := c.GetDeviceStatus("pump_01"); ok {
		t.Error("a malformed payload must not create a status snapshot")
	}

	c.messageHandler(nil, fakeMessage{topic: "pump_01/unknown/topic", payload: "1"})
	if _, ok := c.GetDeviceStatus("pump_01"); ok {
		t.Error("an unhandled topic must not create a status snapshot")
	}

	c.messageHandler(nil, fakeMessage{topic: "short", payload: "1"})
	if _, ok := c.GetDeviceStatus("short"); ok {
		t.Error("a malformed topic must not create a status snapshot")
	}
}

func TestGetDeviceStatusReturnsSnapshot(t *testing.T) {
	c := &Client{}

	c.messageHandler(nil, fakeMessage{topic: "pump_01/moisture/status/level", payload: "30"})
	before, ok := c.GetDeviceStatus("pump_01")
	if !ok {
		t.Fatal("expected a status snapshot")
	}

	// A later report must not mutate an already-returned snapshot.
	c.messageHandler(nil, fakeMessage{topic: "pump_01/moisture/status/level", payload: "5"})

	if before.MoistureLevel != 30 {
		t.Errorf("earlier snapshot mutated: level = %v, want 30", before.MoistureLevel)
	}
	after, _ := c.GetDeviceStatus("pump_01")
	if after.MoistureLevel != 5 {
		t.Errorf("latest snapshot level = %v, want 5", after.MoistureLevel)
	}
}

func TestStatusAccessIsRaceFree(t *testing.T) {
	c := &Client{}
	var wg sync.WaitGroup

	// Concurrent handler invocations and reads; run with -race.
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.messageHandler(nil, fakeMessage{
					topic:   "pump_01/moisture/status/level",
					payload: fmt.Sprintf("%d", i*100+j),
				})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if status, ok := c.GetDeviceStatus("pump_01"); ok && !status.MoistureSeen {
					t.Error("stored snapshot lost its MoistureSeen flag")
					return
				}
			}
		}()
	}
	wg.Wait()
}
