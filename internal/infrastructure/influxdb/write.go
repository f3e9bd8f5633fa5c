package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records a humidity/temperature sample from a sensor hub.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteSensorReading(deviceID string, humidity float64, temperature float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"humidity":    humidity,
			"temperature": temperature,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBatteryLevel records a device battery sample.
//
// Called on handshake and on runtime reports that carry a battery byte.
func (c *Client) WriteBatteryLevel(deviceID string, model string, battery int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"battery",
		map[string]string{
			"device_id": deviceID,
			"model":     model,
		},
		map[string]interface{}{
			"level": battery,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDoorEvent records a door sensor transition.
//
// The recordedAt timestamp comes from the device's reported runtime
// offset, not the hub's receive time.
func (c *Client) WriteDoorEvent(deviceID string, open bool, recordedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"door_events",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"open": open,
		},
		recordedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteSwitchEvent records a switch channel transition.
func (c *Client) WriteSwitchEvent(deviceID string, channel int, on bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"switch_events",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"channel": channel,
			"on":      on,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
