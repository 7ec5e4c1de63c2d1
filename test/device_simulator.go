package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"
)

// Simulated device configuration
type deviceConfig struct {
	ID       string
	Mode     string
	Interval time.Duration
}

func main() {
	addr := flag.String("addr", "localhost:9000", "server address")
	mode := flag.String("mode", "generic", "payload mode: generic, plant")
	device := flag.String("device", "", "device id (defaults per mode)")
	count := flag.Int("count", 0, "number of messages to send, 0 for continuous")
	interval := flag.Duration("interval", 5*time.Second, "delay between messages")
	flag.Parse()

	deviceID := *device
	if deviceID == "" {
		if *mode == "plant" {
			deviceID = "methanol_plant_main"
		} else {
			deviceID = "temp-sensor-01"
		}
	}

	cfg := deviceConfig{ID: deviceID, Mode: *mode, Interval: *interval}

	for {
		if err := run(*addr, cfg, *count); err != nil {
			fmt.Printf("connection error: %v, retrying in 10 seconds...\n", err)
			time.Sleep(10 * time.Second)
			continue
		}
		return
	}
}

// run connects and streams payloads until the send count is reached
func run(addr string, cfg deviceConfig, count int) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("connected to server at %s\n", addr)

	sent := 0
	for {
		var payload map[string]interface{}
		switch cfg.Mode {
		case "plant":
			payload = generatePlantData(cfg.ID)
		case "generic":
			payload = generateSensorData(cfg.ID)
		default:
			fmt.Printf("unknown mode: %s\n", cfg.Mode)
			os.Exit(1)
		}

		message, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		message = append(message, '\n')

		if _, err := conn.Write(message); err != nil {
			return err
		}
		fmt.Printf("sent: %s", message)

		sent++
		if count > 0 && sent >= count {
			return nil
		}
		time.Sleep(cfg.Interval)
	}
}

// generateSensorData produces a generic sensor payload
func generateSensorData(deviceID string) map[string]interface{} {
	return map[string]interface{}{
		"device_id": deviceID,
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"status":    "ok",
		"metrics": map[string]interface{}{
			"temperature": fmt.Sprintf("%.2f°C", 15.0+rand.Float64()*20.0),
			"humidity":    fmt.Sprintf("%.2f%%", 30.0+rand.Float64()*30.0),
		},
	}
}

// generatePlantData produces a methanol plant payload
func generatePlantData(deviceID string) map[string]interface{} {
	realtimePower := round2(4500 + rand.Float64()*1000)
	operatingRate := round2(0.8 + rand.Float64()*0.2)

	unitEnergy := 0.0
	if operatingRate > 0 {
		unitEnergy = round2(realtimePower / (100 * operatingRate))
	}

	return map[string]interface{}{
		"timestamp": float64(time.Now().UnixNano()) / 1e9,
		"device_id": deviceID,
		"energy_consumption": map[string]interface{}{
			"realtime_power_kw":       realtimePower,
			"today_energy_mwh":        round2(realtimePower * 8 / 1000),
			"unit_energy_consumption": unitEnergy,
		},
		"operational_status": map[string]interface{}{
			"operating_rate": operatingRate,
			"oee":            round2(0.80 + rand.Float64()*0.10),
		},
		"equipment_status": map[string]interface{}{
			"water_tank_1": map[string]interface{}{
				"temperature_c":           round2(60 + rand.Float64()*20),
				"temperature_threshold_c": 90.0,
			},
		},
		"main_workshop": map[string]interface{}{
			"storage_area": map[string]interface{}{
				"tank_model":       "T-101A",
				"level_percentage": round2(0.2 + rand.Float64()*0.75),
				"pressure_mpa":     round2(0.08 + rand.Float64()*0.04),
				"temperature_c":    round2(20 + rand.Float64()*10),
			},
			"reaction_area": map[string]interface{}{
				"reactor_model":      "R-301",
				"level_percentage":   round2(0.7 + rand.Float64()*0.2),
				"pressure_mpa":       round2(4.5 + rand.Float64()*1.0),
				"temperature_c":      round2(245 + rand.Float64()*10),
				"co_conversion_rate": round2(0.90 + rand.Float64()*0.05),
			},
		},
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
