package ws

import "fmt"

// Payload size limits (in bytes)
const (
	MaxContentSize = 1 * 1024 * 1024 // 1MB - rendered content limit
	MaxScriptSize  = 256 * 1024      // 256KB - combined script bodies limit
)

// validateRender bounds inbound render payloads before they reach the
// sandbox, preventing memory exhaustion from oversized frames.
func validateRender(msg Message) error {
	if len(msg.Content) > MaxContentSize {
		return fmt.Errorf("content size %d bytes exceeds maximum %d bytes", len(msg.Content), MaxContentSize)
	}

	var scriptBytes int
	for _, s := range msg.Scripts {
		scriptBytes += len(s)
	}
	if scriptBytes > MaxScriptSize {
		return fmt.Errorf("script size %d bytes exceeds maximum %d bytes", scriptBytes, MaxScriptSize)
	}
	return nil
}
