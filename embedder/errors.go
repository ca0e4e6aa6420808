package embedder

import "errors"

// Error kinds surfaced by the engine. Failures of these kinds wrap the
// matching sentinel so callers can branch with errors.Is. Table access,
// CSV parsing and file I/O errors are returned without a sentinel.
var (
	// ErrInvalidConfig reports an unusable embedder configuration,
	// such as a non-positive filter size or a similarity matrix whose
	// dimension does not match it.
	ErrInvalidConfig = errors.New("invalid embedder config")

	// ErrUnknownFeatureType reports a column specification naming a
	// feature type absent from the feature factory.
	ErrUnknownFeatureType = errors.New("unknown feature type")

	// ErrInvalidFieldValue reports a field value that cannot be
	// coerced to text.
	ErrInvalidFieldValue = errors.New("invalid field value")

	// ErrConfigMismatch reports two datasets that were not produced by
	// the same embedder configuration.
	ErrConfigMismatch = errors.New("embedder config mismatch")

	// ErrSerialization reports a corrupt or version-incompatible
	// artifact.
	ErrSerialization = errors.New("serialization error")
)
