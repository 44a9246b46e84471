package ingestion

import "errors"

var (
	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrCoordinatorRequired is returned when a storage coordinator is not provided.
	ErrCoordinatorRequired = errors.New("storage coordinator required")

	// ErrJournalRequired is returned when a job journal is not provided.
	ErrJournalRequired = errors.New("job journal required")

	// ErrTrackerRequired is returned when a progress tracker is not provided.
	ErrTrackerRequired = errors.New("progress tracker required")

	// ErrJobNotFound is returned when no job exists for an ingestion ID.
	ErrJobNotFound = errors.New("ingestion job not found")

	// ErrFetchTooLarge is returned when fetched URL content exceeds the
	// configured size cap.
	ErrFetchTooLarge = errors.New("fetched content exceeds the size limit")

	// ErrWatcherRunning is returned when Start is called on a running watcher.
	ErrWatcherRunning = errors.New("watcher already running")
)
