package loader

import (
	"embed"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.schema.yaml
var schemaFS embed.FS

// compileSchema loads one embedded schema file and compiles it.
func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, errors.Wrapf(err, "read embedded schema %s", name)
	}

	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, errors.Wrapf(err, "parse schema %s", name)
	}
	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal schema %s", name)
	}

	schema, err := jsonschema.CompileString(name, string(jsonData))
	if err != nil {
		return nil, errors.Wrapf(err, "compile schema %s", name)
	}
	return schema, nil
}

// validateDocument checks one raw YAML document against an embedded schema.
// The document is round-tripped through JSON so the schema library sees
// JSON-typed values.
func validateDocument(schemaName, path string, raw []byte) error {
	schema, err := compileSchema(schemaName)
	if err != nil {
		return err
	}

	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "normalize %s", path)
	}
	var normalized interface{}
	if err := json.Unmarshal(jsonData, &normalized); err != nil {
		return errors.Wrapf(err, "normalize %s", path)
	}

	if err := schema.Validate(normalized); err != nil {
		return errors.Wrapf(err, "%s does not match schema", path)
	}
	return nil
}
