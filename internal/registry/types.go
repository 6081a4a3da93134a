package registry

// Category groups service providers.
type Category string

const (
	CategorySources Category = "sources"
	CategoryRender  Category = "render"
	CategorySystem  Category = "system"
)

// Service describes a provider and the tools it offers.
type Service struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Tools       []Tool   `json:"tools"`
}

// Tool is one invocable operation.
//
// Cacheable marks tools that are idempotent and read-only, whose results may
// be replayed from the result cache. RequiresApproval marks sensitive tools
// whose execution is suspended behind the approval gate.
type Tool struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Cacheable        bool   `json:"cacheable,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
	ApprovalReason   string `json:"approval_reason,omitempty"`
}

// Result is a tool execution outcome.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *string        `json:"error,omitempty"`
	Cached  bool           `json:"cached,omitempty"`
}

// Success creates a successful result.
func Success(data map[string]any) (*Result, error) {
	return &Result{Success: true, Data: data}, nil
}

// Failure creates a failed result.
func Failure(message string) (*Result, error) {
	msg := message
	return &Result{Success: false, Error: &msg}, nil
}
