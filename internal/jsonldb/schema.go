// Generates JSON Schemas for stored types by reflection.

package jsonldb

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// SchemaFor returns the JSON Schema of T, inlining every nested definition.
//
// It uses github.com/invopop/jsonschema, so field descriptions come from
// `jsonschema:"description=..."` tags. Stored rows may carry members their Go
// type does not declare, so additional properties are allowed.
func SchemaFor[T any]() (*jsonschema.Schema, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type must be a struct or pointer to struct, got %s", t.Kind())
	}
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true, AllowAdditionalProperties: true}
	return r.ReflectFromType(t), nil
}

// CollectionSchema returns the schema of the JSON array stored by a
// Collection of T.
func CollectionSchema[T any]() (*jsonschema.Schema, error) {
	item, err := SchemaFor[T]()
	if err != nil {
		return nil, err
	}
	version := item.Version
	item.Version = ""
	return &jsonschema.Schema{
		Version: version,
		Type:    "array",
		Items:   item,
	}, nil
}
