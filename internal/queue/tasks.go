package queue

const TypePromptEvent = "prompt:event"

// PromptEventPayload describes one prompt lifecycle transition. The
// worker turns these into audit log rows.
type PromptEventPayload struct {
	PromptID      string `json:"prompt_id"`
	OwnerID       string `json:"owner_id"`
	Action        string `json:"action"`
	VersionNumber int    `json:"version_number,omitempty"`
}
