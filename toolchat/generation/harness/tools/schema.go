package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ReflectSchema builds the parameter schema for an argument struct. Fields
// without omitempty are required; descriptions come from jsonschema tags.
func ReflectSchema(args any) []byte {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(args)
	schema.Version = "" // gojsonschema only understands drafts up to 7
	schema.ID = ""
	if schema.Type == "" {
		schema.Type = "object"
	}

	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: cannot encode schema for %T: %v", args, err))
	}
	return b
}

// ArgumentDecoder validates raw call arguments against a tool's schema and
// decodes them into the tool's parameter struct.
type ArgumentDecoder struct {
	schema *gojsonschema.Schema
}

func NewArgumentDecoder(schema []byte) (*ArgumentDecoder, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid tool schema: %w", err)
	}
	return &ArgumentDecoder{schema: compiled}, nil
}

// MustArgumentDecoder is NewArgumentDecoder for schemas built at init time.
func MustArgumentDecoder(schema []byte) *ArgumentDecoder {
	d, err := NewArgumentDecoder(schema)
	if err != nil {
		panic(err)
	}
	return d
}

// Decode checks args and unmarshals them into dst. Missing arguments are
// treated as an empty object.
func (d *ArgumentDecoder) Decode(args json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		return fmt.Errorf("invalid arguments: not valid JSON")
	}

	result, err := d.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("invalid arguments: %s", strings.Join(problems, "; "))
	}

	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
