package agent

import "fmt"

// MalformedResponseError reports a completion that could not be parsed into
// the structure the agent expected. The raw content is kept for failure
// records and debugging.
type MalformedResponseError struct {
	AgentType Type
	Reason    string
	Raw       string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("agent %s returned malformed response: %s", e.AgentType, e.Reason)
}

// RecommendationCount is the fixed length of every recommendation and
// ground-truth list. Precision is always measured against this many items.
const RecommendationCount = 10

// ValidationError reports a ranked list that could not be brought to exactly
// RecommendationCount valid IDs even after padding.
type ValidationError struct {
	AgentType Type
	Got       int
	Want      int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("agent %s produced %d IDs, want exactly %d", e.AgentType, e.Got, e.Want)
}
