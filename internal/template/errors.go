package template

import "errors"

var (
	// ErrTemplateNotFound is returned when a schema references a
	// template id that the asset bundle does not contain.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrMissingTemplateKey is returned when a template references a
	// context field that has no value.
	ErrMissingTemplateKey = errors.New("template references missing context key")

	// ErrUnexpandedToken is returned when rendered output still
	// contains template syntax, which indicates a broken template.
	ErrUnexpandedToken = errors.New("rendered output contains unexpanded token")
)
