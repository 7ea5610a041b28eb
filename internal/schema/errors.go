package schema

import "errors"

// Sentinel errors for schema construction and loading.
var (
	// ErrSchemaIntegrity marks a manifest that declares contradictory
	// ownership. Reconciliation must not start from such a schema.
	ErrSchemaIntegrity = errors.New("schema integrity violation")

	// ErrManifestInvalid marks a manifest that fails structural
	// validation against the embedded JSON Schema.
	ErrManifestInvalid = errors.New("schema manifest invalid")

	// ErrManifestTooLarge guards against pathological manifest files.
	ErrManifestTooLarge = errors.New("schema manifest too large")
)
