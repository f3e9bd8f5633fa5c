// Package influxdb provides time-series telemetry storage for BotLink Core.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking, batched writes of sensor and device telemetry
//   - Connection health monitoring
//
// # What gets written
//
//   - sensor_readings: humidity and temperature samples from sensor hubs
//   - battery: battery levels reported on handshake and runtime frames
//   - door_events: door open/close transitions with device-reported timestamps
//   - switch_events: switch channel transitions
//
// SQLite remains the source of truth for current device state; InfluxDB
// holds the history for graphing and analysis. The integration is
// optional and the hub runs fine without it.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("AbCdE_0001", 45.2, 21.5)
package influxdb
