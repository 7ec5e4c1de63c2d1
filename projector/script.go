package projector

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/kanromiku/Industrial-Internet/config"
	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/parser"
)

// ScriptProjector projects records through a JavaScript function, for
// deployments whose column set matches neither built-in shape. The script
// must define project(payload) taking the canonical JSON string and
// returning an object; a "plant" member selects the plant row shape, with
// an optional "workshop_data" member as its JSON remainder.
type ScriptProjector struct {
	vm         *goja.Runtime
	project    goja.Callable
	scriptPath string
	mutex      sync.Mutex // goja runtimes are not safe for concurrent use
}

// scriptResult is the JSON shape a script is expected to return
type scriptResult struct {
	Plant        *PlantMetrics   `json:"plant"`
	WorkshopData json.RawMessage `json:"workshop_data"`
}

// NewScriptProjector creates a projector from inline script code or a
// script file; inline code wins when both are set.
func NewScriptProjector(cfg config.Projector) (*ScriptProjector, error) {
	scriptCode := cfg.ScriptCode
	if scriptCode == "" {
		if cfg.ScriptPath == "" {
			return nil, fmt.Errorf("no script code or script path provided")
		}
		scriptBytes, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load script file %s: %v", cfg.ScriptPath, err)
		}
		scriptCode = string(scriptBytes)
	}

	vm := goja.New()

	// Helper functions available to scripts
	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})

	_ = vm.Set("parseJSON", func(jsonStr string) interface{} {
		var data interface{}
		if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
			logger.Warn("failed to parse JSON in script: %v", err)
			return nil
		}
		return data
	})

	_ = vm.Set("formatDate", func(timestamp int64, format string) string {
		if format == "" {
			format = "2006-01-02 15:04:05"
		}
		return time.Unix(timestamp, 0).UTC().Format(format)
	})

	_ = vm.Set("validateRange", func(value float64, min float64, max float64) bool {
		return value >= min && value <= max
	})

	if _, err := vm.RunString(scriptCode); err != nil {
		return nil, fmt.Errorf("failed to run script: %v", err)
	}

	projectValue := vm.Get("project")
	if projectValue == nil {
		return nil, fmt.Errorf("script does not define a 'project' function")
	}
	project, ok := goja.AssertFunction(projectValue)
	if !ok {
		return nil, fmt.Errorf("'project' is not a function")
	}

	return &ScriptProjector{
		vm:         vm,
		project:    project,
		scriptPath: cfg.ScriptPath,
	}, nil
}

// Name implements Projector
func (s *ScriptProjector) Name() string { return "script" }

// Project implements Projector
func (s *ScriptProjector) Project(env *parser.Envelope) (*Record, error) {
	s.mutex.Lock()
	value, err := s.project(goja.Undefined(), s.vm.ToValue(string(env.Raw)))
	if err != nil {
		s.mutex.Unlock()
		return nil, fmt.Errorf("script execution failed: %v", err)
	}
	exported := value.Export()
	s.mutex.Unlock()

	jsonData, err := json.Marshal(exported)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize script result: %v", err)
	}

	var result scriptResult
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("unexpected script result shape: %v", err)
	}

	record := &Record{
		DeviceID:  env.DeviceID,
		Timestamp: env.Timestamp,
		Payload:   env.Raw,
	}
	if result.Plant != nil {
		record.Plant = result.Plant
		if len(result.WorkshopData) > 0 {
			record.Plant.WorkshopData = []byte(result.WorkshopData)
		} else {
			record.Plant.WorkshopData = []byte("{}")
		}
	}

	return record, nil
}
