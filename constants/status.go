package constants

// DocumentStatus is the lifecycle state of an uploaded document.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusError      DocumentStatus = "error"
)

// statusTransitions lists the states each state may move to. A processed or
// failed document re-enters processing only through an explicit reprocess.
var statusTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusProcessed, StatusError},
	StatusProcessed:  {StatusProcessing},
	StatusError:      {StatusProcessing},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to DocumentStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}
