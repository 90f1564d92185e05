package engine

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	mediaTypeJSON = "application/json"
	mediaTypeYAML = "application/yaml"
)

// DecodePayload parses an inbound service definition. The payload may be JSON
// or YAML, selected by the declared content type; both decode to a mapping
// with string keys. An unsupported media type and a syntactically broken
// payload are distinct failures.
func DecodePayload(body []byte, contentType string) (map[string]interface{}, error) {
	mediaType := contentType

	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}

	mediaType = strings.TrimSpace(strings.ToLower(mediaType))

	var decoded map[string]interface{}

	switch mediaType {
	case mediaTypeJSON:
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, wrapError(KindMalformedPayload, "provided json is not valid", err)
		}
	case mediaTypeYAML:
		if err := yaml.Unmarshal(body, &decoded); err != nil {
			return nil, wrapError(KindMalformedPayload, "provided yaml is not valid", err)
		}
	default:
		return nil, newError(KindUnsupportedMediaType,
			"unsupported media type, supported media types are application/json and application/yaml")
	}

	if decoded == nil {
		return nil, newError(KindMalformedPayload, "payload must be a mapping")
	}

	return decoded, nil
}

// payloadString reads an optional string field from a decoded payload.
func payloadString(payload map[string]interface{}, key string) string {
	value, _ := payload[key].(string)
	return value
}
