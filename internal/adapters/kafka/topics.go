package kafka

// Topic definitions for consensus event streaming
const (
	// Consensus events
	TopicDecisions = "consensus.decisions"
	TopicConflicts = "consensus.conflicts"

	// Module lifecycle events
	TopicModuleRetrained = "modules.retrained"
)
