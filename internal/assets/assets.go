// Package assets embeds the default schema manifest, its JSON Schema
// definition, and the file templates the schema references.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed schema.yaml schema.schema.json templates
var bundle embed.FS

// Schema returns the default schema manifest in YAML form.
func Schema() []byte {
	data, err := bundle.ReadFile("schema.yaml")
	if err != nil {
		panic("embedded schema.yaml missing: " + err.Error())
	}
	return data
}

// SchemaDefinition returns the JSON Schema the manifest is validated
// against.
func SchemaDefinition() []byte {
	data, err := bundle.ReadFile("schema.schema.json")
	if err != nil {
		panic("embedded schema.schema.json missing: " + err.Error())
	}
	return data
}

// Templates returns the template bundle rooted at the templates
// directory, so template ids in the schema resolve directly.
func Templates() fs.FS {
	sub, err := fs.Sub(bundle, "templates")
	if err != nil {
		panic("embedded templates missing: " + err.Error())
	}
	return sub
}
