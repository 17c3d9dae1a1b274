package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// schemaDoc is the part of the generated schema we check against
type schemaDoc struct {
	Ref  string `json:"$ref"`
	Defs map[string]struct {
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	} `json:"$defs"`
}

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema.
// It checks that required properties are set and there are no properties unknown to the schema.
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	// parse schema
	var schema schemaDoc
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}
	def, ok := schema.Defs[strings.TrimPrefix(schema.Ref, "#/$defs/")]
	if !ok {
		return fmt.Errorf("schema has no definition for %s", schema.Ref)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]any
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	var missing []string
	for _, key := range def.Required {
		if isEmpty(configMap[key]) {
			missing = append(missing, key)
		}
	}
	var unknown []string
	for key := range configMap {
		if _, ok := def.Properties[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	if len(missing) > 0 {
		return fmt.Errorf("required properties not set: %s", strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		return fmt.Errorf("properties not in schema: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
