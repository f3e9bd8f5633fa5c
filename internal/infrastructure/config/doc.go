// Package config loads and validates BotLink Core configuration.
//
// Configuration comes from three layers, later layers overriding earlier ones:
//
//  1. Hardcoded defaults (defaultConfig)
//  2. A YAML file (configs/config.yaml by default)
//  3. Environment variables (BOTLINK_SECTION_KEY)
//
// Secrets (JWT signing keys, MQTT credentials, InfluxDB tokens) should be
// supplied via environment variables rather than committed YAML.
package config
