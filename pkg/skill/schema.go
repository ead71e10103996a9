package skill

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidInput is returned when an input does not satisfy the declared params.
var ErrInvalidInput = errors.New("invalid skill input")

// InputSchema renders the declared params as a JSON Schema object.
// Injected params carry no type constraint since the engine supplies them.
func (s Skill) InputSchema(includeInjected bool) map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]string, 0, len(s.Params))

	for _, p := range s.Params {
		if p.IsInjected() {
			if !includeInjected {
				continue
			}
			props[p.Name] = map[string]any{"description": p.Description}
		} else {
			props[p.Name] = paramSchema(p)
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func paramSchema(p Param) map[string]any {
	typ := p.Type
	if typ == "" {
		typ = "string"
	}
	out := map[string]any{"type": typ}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if typ == "array" {
		items := p.Items
		if items == "" {
			items = "string"
		}
		out["items"] = map[string]any{"type": items}
	}
	return out
}

// ValidateInput checks in against the skill's declared params.
func (s Skill) ValidateInput(in Input, includeInjected bool) error {
	if len(s.Params) == 0 {
		return nil
	}
	if in == nil {
		in = Input{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s.InputSchema(includeInjected)),
		gojsonschema.NewGoLoader(map[string]any(in)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(issues, "; "))
}

// Decode copies an input map into a typed struct using mapstructure tags.
func Decode(in map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}
