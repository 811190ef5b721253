package pipeline

import "errors"

// Sentinel errors for the service lifecycle and query path. Handlers map
// these onto HTTP status codes.
var (
	// ErrNotInitialized is returned while startup has not finished or
	// after it failed fatally.
	ErrNotInitialized = errors.New("knowledge service not initialized")

	// ErrConnectivity means the model server cannot be reached.
	ErrConnectivity = errors.New("model server unreachable")

	// ErrModelUnavailable means the server is up but a required model is
	// not pulled.
	ErrModelUnavailable = errors.New("required model not available")

	// ErrStorage wraps vector index failures.
	ErrStorage = errors.New("knowledge index unavailable")

	// ErrIngestion wraps content loading failures.
	ErrIngestion = errors.New("content ingestion failed")

	// ErrRetrieval wraps similarity search failures during a query.
	ErrRetrieval = errors.New("context retrieval failed")

	// ErrGeneration wraps answer generation failures.
	ErrGeneration = errors.New("answer generation failed")

	// ErrNotFound is returned when a named document does not exist.
	ErrNotFound = errors.New("document not found")
)
