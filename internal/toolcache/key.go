package toolcache

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// canonical is a std-compatible JSON config: map keys are sorted, so the
// same input always serializes to the same bytes.
var canonical = sonic.ConfigStd

// Key derives the cache key for a tool invocation. The input is serialized
// deterministically and folded into a short rolling hash, scoped by tool
// name. The hash is fast but not collision-resistant; with a one hour TTL
// and per-tool scoping the residual risk is accepted.
func Key(toolName string, input map[string]any) string {
	data, err := canonical.Marshal(input)
	if err != nil {
		// Maps of JSON-incompatible values should not reach tools, but a
		// key must still come out.
		data = []byte(fmt.Sprintf("%v", input))
	}
	return fmt.Sprintf("%s_%08x", toolName, roll(data))
}

// roll is a djb2-style rolling hash over the canonical input bytes.
func roll(data []byte) uint32 {
	var h uint32 = 5381
	for _, b := range data {
		h = h<<5 + h + uint32(b)
	}
	return h
}
