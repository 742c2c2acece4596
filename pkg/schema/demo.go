package schema

import _ "embed"

//go:embed demo_schema.yaml
var demoSchemaYAML []byte

// DemoRegistry builds the registry for the embedded demo retail schema:
// merchandising, marketplace and analytics tables with their foreign-key
// edges and aggregate rules.
func DemoRegistry() (*Registry, error) {
	return LoadYAML(demoSchemaYAML)
}

// DemoSchemaYAML returns the raw embedded schema document.
func DemoSchemaYAML() []byte {
	return append([]byte(nil), demoSchemaYAML...)
}
