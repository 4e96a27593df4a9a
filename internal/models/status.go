package models

// Canonical booking statuses, shared by orders and service requests.
// Orders additionally start life as a cart.
const (
	StatusCart       = "cart"
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// legacyStatuses maps vocabulary still sent by older callers onto the
// canonical enum. "confirmed" meant the client had paid before provider
// acceptance, which the current flow treats as accepted.
var legacyStatuses = map[string]string{
	"confirmed": StatusAccepted,
}

var validStatuses = map[string]bool{
	StatusCart:       true,
	StatusPending:    true,
	StatusAccepted:   true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// NormalizeStatus resolves legacy aliases to canonical statuses. The second
// return is false for statuses outside the vocabulary.
func NormalizeStatus(status string) (string, bool) {
	if canonical, ok := legacyStatuses[status]; ok {
		return canonical, true
	}
	if validStatuses[status] {
		return status, true
	}
	return "", false
}

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}
