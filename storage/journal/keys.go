package journal

import "fmt"

// Key prefixes for the two record types
const (
	jobPrefix      = "ingjob"
	syncTaskPrefix = "synctask"
)

// makeJobKey generates the key for a job record by ingestion ID.
func makeJobKey(ingestionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, ingestionID))
}

// makeSyncTaskKey generates the key for a sync task by task ID.
func makeSyncTaskKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", syncTaskPrefix, id))
}
