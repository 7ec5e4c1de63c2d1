package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/projector"
)

const mysqlInsertSensorSQL = `INSERT INTO sensor_data (device_id, ts, payload, received_at) VALUES (?, ?, ?, ?)`

const mysqlInsertPlantSQL = `INSERT INTO methanol_plant_log
	(device_id, ts, realtime_power_kw, today_energy_mwh, unit_energy_consumption, operating_rate, oee, workshop_data, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// MySQLStorage represents the MySQL storage backend
type MySQLStorage struct {
	db  *sql.DB
	dsn string
}

// NewMySQLStorage connects to MySQL and prepares the tables
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("MySQL connection test failed: %v", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	storage := &MySQLStorage{
		db:  db,
		dsn: dsn,
	}

	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize MySQL tables: %v", err)
	}

	logger.Info("MySQL storage initialized")
	return storage, nil
}

// InitDatabase creates the telemetry tables
func (ms *MySQLStorage) InitDatabase() error {
	sensorTableSQL := `
	CREATE TABLE IF NOT EXISTS sensor_data (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		device_id VARCHAR(255) NOT NULL,
		ts DATETIME(6) NOT NULL,
		payload JSON,
		received_at DATETIME(6) NOT NULL,
		INDEX idx_sensor_data_device_id (device_id),
		INDEX idx_sensor_data_ts (ts)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	plantTableSQL := `
	CREATE TABLE IF NOT EXISTS methanol_plant_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		device_id VARCHAR(255) NOT NULL,
		ts DATETIME(6) NOT NULL,
		realtime_power_kw DOUBLE,
		today_energy_mwh DOUBLE,
		unit_energy_consumption DOUBLE,
		operating_rate DOUBLE,
		oee DOUBLE,
		workshop_data JSON,
		received_at DATETIME(6) NOT NULL,
		INDEX idx_methanol_plant_log_device_id (device_id),
		INDEX idx_methanol_plant_log_ts (ts)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := ms.db.Exec(sensorTableSQL); err != nil {
		return fmt.Errorf("failed to create sensor_data table: %v", err)
	}
	if _, err := ms.db.Exec(plantTableSQL); err != nil {
		return fmt.Errorf("failed to create methanol_plant_log table: %v", err)
	}

	return nil
}

// Store executes one parameterized insert for the record
func (ms *MySQLStorage) Store(record *projector.Record) error {
	if record.Plant != nil {
		plant := record.Plant
		_, err := ms.db.Exec(mysqlInsertPlantSQL,
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

	_, err := ms.db.Exec(mysqlInsertSensorSQL,
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
func (ms *MySQLStorage) Close() error {
	if ms.db != nil {
		if err := ms.db.Close(); err != nil {
			return fmt.Errorf("failed to close MySQL connection: %v", err)
		}
		logger.Info("MySQL connection closed")
	}
	return nil
}
