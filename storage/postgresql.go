package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/projector"
)

const pgInsertSensorSQL = `INSERT INTO sensor_data (device_id, ts, payload, received_at) VALUES ($1, $2, $3::jsonb, $4)`

const pgInsertPlantSQL = `INSERT INTO methanol_plant_log
	(device_id, ts, realtime_power_kw, today_energy_mwh, unit_energy_consumption, operating_rate, oee, workshop_data, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`

// PostgreSQLStorage represents the PostgreSQL storage backend
type PostgreSQLStorage struct {
	db  *sql.DB
	dsn string
}

// NewPostgreSQLStorage connects to PostgreSQL and prepares the tables
func NewPostgreSQLStorage(dsn string) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("PostgreSQL connection test failed: %v", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	storage := &PostgreSQLStorage{
		db:  db,
		dsn: dsn,
	}

	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize PostgreSQL tables: %v", err)
	}

	logger.Info("PostgreSQL storage initialized")
	return storage, nil
}

// InitDatabase creates the telemetry tables
func (ps *PostgreSQLStorage) InitDatabase() error {
	sensorTableSQL := `
	CREATE TABLE IF NOT EXISTS sensor_data (
		id BIGSERIAL PRIMARY KEY,
		device_id TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		payload JSONB,
		received_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sensor_data_device_id ON sensor_data(device_id);
	CREATE INDEX IF NOT EXISTS idx_sensor_data_ts ON sensor_data(ts);
	`

	plantTableSQL := `
	CREATE TABLE IF NOT EXISTS methanol_plant_log (
		id BIGSERIAL PRIMARY KEY,
		device_id TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		realtime_power_kw DOUBLE PRECISION,
		today_energy_mwh DOUBLE PRECISION,
		unit_energy_consumption DOUBLE PRECISION,
		operating_rate DOUBLE PRECISION,
		oee DOUBLE PRECISION,
		workshop_data JSONB,
		received_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_methanol_plant_log_device_id ON methanol_plant_log(device_id);
	CREATE INDEX IF NOT EXISTS idx_methanol_plant_log_ts ON methanol_plant_log(ts);
	`

	if _, err := ps.db.Exec(sensorTableSQL); err != nil {
		return fmt.Errorf("failed to create sensor_data table: %v", err)
	}
	if _, err := ps.db.Exec(plantTableSQL); err != nil {
		return fmt.Errorf("failed to create methanol_plant_log table: %v", err)
	}

	return nil
}

// Store executes one parameterized insert for the record
func (ps *PostgreSQLStorage) Store(record *projector.Record) error {
	if record.Plant != nil {
		plant := record.Plant
		_, err := ps.db.Exec(pgInsertPlantSQL,
			record.DeviceID,
			record.Timestamp,
			plant.RealtimePowerKW,
			plant.TodayEnergyMWH,
			plant.UnitEnergy,
			plant.OperatingRate,
			plant.OEE,
			string(plant.WorkshopData),
			record.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert plant log: %v", err)
		}
		return nil
	}

	_, err := ps.db.Exec(pgInsertSensorSQL,
		record.DeviceID,
		record.Timestamp,
		string(record.Payload),
		record.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sensor data: %v", err)
	}
	return nil
}

// Close closes the database connection
func (ps *PostgreSQLStorage) Close() error {
	if ps.db != nil {
		if err := ps.db.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL connection: %v", err)
		}
		logger.Info("PostgreSQL connection closed")
	}
	return nil
}
