package models

import "time"

// PumpDeviceStatus mirrors the most recent status reports published by the
// watering device over MQTT. It is held in memory only; durable state lives in
// DeviceState and PumpActivity.
type PumpDeviceStatus struct {
	DeviceID      string    `json:"deviceId"`
	PumpOn        bool      `json:"pumpOn"`
	MoistureLevel float64   `json:"moistureLevel"`
	MoistureSeen  bool      `json:"moistureSeen"`
	LastReport    time.Time `json:"lastReport"`
}
