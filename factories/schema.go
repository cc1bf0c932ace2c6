package factories

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/invopop/jsonschema"
)

// SettingsSchema describes sita_config.json for editors. Every key is optional since
// missing keys take their defaults.
func SettingsSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
	}
	schema := r.Reflect(&SettingsConfig{})
	schema.Title = "SITA settings"
	schema.Description = "Provider keys, model choice and voice preferences for the SITA assistant."
	schema.Required = nil

	data, err := sonic.ConfigStd.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("settings: encode schema: %w", err)
	}
	return data, nil
}
