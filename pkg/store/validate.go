package store

import (
	"encoding/json"
	"fmt"

	"github.com/targc/servio/pkg/models"
)

func validateGeneration(gen *models.Generation) error {
	required := map[string]string{
		"generation_id": gen.GenerationID,
		"client_id":     gen.ClientID,
		"datacenter_id": gen.DatacenterID,
		"service_name":  gen.ServiceName,
		"service_kind":  gen.ServiceKind,
		"status":        gen.Status,
	}

	for column, value := range required {
		if value == "" {
			return fmt.Errorf("%s must not be empty", column)
		}
	}

	if gen.Endpoint == nil {
		return fmt.Errorf("endpoint must not be null")
	}

	if !isJSONObject([]byte(gen.Options)) {
		return fmt.Errorf("options: %w", ErrInvalidJSON)
	}

	if len(gen.Result) > 0 && !isJSONObject([]byte(gen.Result)) {
		return fmt.Errorf("result: %w", ErrInvalidJSON)
	}

	return nil
}

func validatePatch(patch map[string]interface{}) error {
	for _, column := range []string{"options", "result"} {
		value, ok := patch[column]
		if !ok || value == nil {
			continue
		}

		var raw []byte

		switch v := value.(type) {
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("%s: %w", column, ErrInvalidJSON)
			}
			raw = data
		}

		if !isJSONObject(raw) {
			return fmt.Errorf("%s: %w", column, ErrInvalidJSON)
		}
	}

	for _, column := range []string{"generation_id", "client_id", "datacenter_id", "service_name", "service_kind", "status", "endpoint", "options"} {
		value, ok := patch[column]
		if ok && value == nil {
			return fmt.Errorf("%s must not be null", column)
		}
	}

	return nil
}

// isJSONObject accepts only well-formed JSON objects, the one shape the
// options and result columns may hold. A literal null decodes into a nil map
// and is rejected.
func isJSONObject(raw []byte) bool {
	var decoded map[string]interface{}

	if json.Unmarshal(raw, &decoded) != nil {
		return false
	}

	return decoded != nil
}
