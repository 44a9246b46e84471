package reconcile

import "errors"

var (
	// ErrSweeperRunning is returned when Start is called on a running sweeper.
	ErrSweeperRunning = errors.New("sweeper already running")

	// ErrJournalRequired is returned when a job journal is not provided.
	ErrJournalRequired = errors.New("job journal required")

	// ErrDocumentStoreRequired is returned when a document store is not provided.
	ErrDocumentStoreRequired = errors.New("document store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)
