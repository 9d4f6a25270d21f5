package combat

import (
	"reflect"
	"strings"
	"testing"
)

// A backslash in a struct tag breaks reflect.StructTag parsing, which the
// schema generator depends on.
func TestProfileStructTagsParse(t *testing.T) {
	typ := reflect.TypeOf(Profile{})
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if _, ok := f.Tag.Lookup("json"); !ok {
			t.Fatalf("field %s: json tag missing or unparseable", f.Name)
		}
		schema, ok := f.Tag.Lookup("jsonschema")
		if !ok {
			t.Fatalf("field %s: jsonschema tag missing or unparseable", f.Name)
		}
		if strings.Contains(schema, `\`) {
			t.Fatalf("field %s: jsonschema tag contains a backslash: %s", f.Name, schema)
		}
	}
}
