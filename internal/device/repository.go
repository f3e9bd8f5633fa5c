package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteStore implements Store using SQLite. History tables are
// append-only; the devices table holds current state keyed by id.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
// The db parameter should be an open SQLite connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// UpsertDevice inserts or replaces the persisted row for a device.
func (s *SQLiteStore) UpsertDevice(ctx context.Context, rec Record) error {
	extraJSON, err := json.Marshal(rec.Extra)
	if err != nil {
		return fmt.Errorf("marshaling extra: %w", err)
	}

	query := `
		INSERT INTO devices (id, name, model, battery, extra, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			battery = excluded.battery,
			extra = excluded.extra,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		int(rec.Model),
		nullableInt(rec.Battery),
		string(extraJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// CreateDoorRecord appends a door transition to the checker history.
func (s *SQLiteStore) CreateDoorRecord(ctx context.Context, deviceID string, open bool, battery *int, recordedAt time.Time) error {
	query := `
		INSERT INTO checker_history (device_id, open, battery, record_date)
		VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		deviceID, open, nullableInt(battery), recordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting door record: %w", err)
	}
	return nil
}

// CreateSwitchRecord appends a channel transition to the switch history.
func (s *SQLiteStore) CreateSwitchRecord(ctx context.Context, deviceID string, channel int, state bool, recordedAt time.Time) error {
	query := `
		INSERT INTO switch_history (device_id, channel, state, record_date)
		VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		deviceID, channel, state, recordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting switch record: %w", err)
	}
	return nil
}

// CreateSensorRecord appends a humidity/temperature sample to the
// sensor history.
func (s *SQLiteStore) CreateSensorRecord(ctx context.Context, deviceID string, humidity, temperature float64) error {
	query := `
		INSERT INTO sensor_history (device_id, humidity, temperature, record_date)
		VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		deviceID, humidity, temperature, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting sensor record: %w", err)
	}
	return nil
}

// ListDevices retrieves all persisted device records.
func (s *SQLiteStore) ListDevices(ctx context.Context) ([]Record, error) {
	query := `SELECT id, name, model, battery, extra FROM devices ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var model int
		var battery sql.NullInt64
		var extraJSON string

		if err := rows.Scan(&rec.ID, &rec.Name, &model, &battery, &extraJSON); err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}

		rec.Model = byte(model)
		if battery.Valid {
			b := int(battery.Int64)
			rec.Battery = &b
		}
		if extraJSON != "" {
			if err := json.Unmarshal([]byte(extraJSON), &rec.Extra); err != nil {
				return nil, fmt.Errorf("unmarshaling extra for %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
