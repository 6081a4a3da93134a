// Package registry manages tool providers and runs tool calls through the
// result cache and the approval gate.
//
// Caching is opt-in per tool definition; gating likewise. The registry is
// the only place that consults either, so providers stay oblivious to both
// concerns.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/curiolabs/curio/internal/approval"
	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/toolcache"
)

// Provider is the interface service implementations register under.
type Provider interface {
	Definition() Service
	Execute(ctx context.Context, toolID string, params map[string]any) (*Result, error)
}

// Registry is the central tool catalog.
type Registry struct {
	services sync.Map
	cache    *toolcache.Cache
	gate     *approval.Gate
	logger   *logging.Logger
}

// New creates a registry. cache and gate may be nil, disabling caching and
// gating respectively.
func New(cache *toolcache.Cache, gate *approval.Gate, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		cache:  cache,
		gate:   gate,
		logger: logger.WithComponent("registry"),
	}
}

// Register adds a service provider.
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if def.ID == "" {
		return fmt.Errorf("service ID cannot be empty")
	}
	r.services.Store(def.ID, provider)
	return nil
}

// Unregister removes a service provider.
func (r *Registry) Unregister(serviceID string) {
	r.services.Delete(serviceID)
}

// Get retrieves a provider by service ID.
func (r *Registry) Get(serviceID string) (Provider, bool) {
	val, ok := r.services.Load(serviceID)
	if !ok {
		return nil, false
	}
	return val.(Provider), true
}

// List returns all registered service definitions.
func (r *Registry) List() []Service {
	var services []Service
	r.services.Range(func(_, value any) bool {
		services = append(services, value.(Provider).Definition())
		return true
	})
	return services
}

// Execute runs a tool call. Cacheable tools are served from the result
// cache when possible; gated tools suspend behind the approval gate until a
// human decides. Tool IDs take the form "service.tool".
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]any) (*Result, error) {
	serviceID, _, ok := strings.Cut(toolID, ".")
	if !ok {
		return Failure(fmt.Sprintf("invalid tool ID format: %s", toolID))
	}

	provider, found := r.Get(serviceID)
	if !found {
		return Failure(fmt.Sprintf("service not found: %s", serviceID))
	}

	tool, found := findTool(provider.Definition(), toolID)
	if !found {
		return Failure(fmt.Sprintf("tool not found: %s", toolID))
	}

	if tool.Cacheable && r.cache != nil {
		if data, hit := r.cache.Get(ctx, toolID, params); hit {
			r.logger.Debug("cache hit", zap.String("tool", toolID))
			return &Result{Success: true, Data: asDataMap(data), Cached: true}, nil
		}
	}

	execute := func(ctx context.Context, args map[string]any) (any, error) {
		return provider.Execute(ctx, toolID, args)
	}
	if tool.RequiresApproval && r.gate != nil {
		execute = r.gate.WithApproval(toolID, tool.ApprovalReason, execute)
	}

	out, err := execute(ctx, params)
	if err != nil {
		return nil, err
	}
	result := out.(*Result)

	if tool.Cacheable && r.cache != nil && result.Success {
		r.cache.Set(ctx, toolID, params, result.Data)
	}
	return result, nil
}

// Stats returns registry statistics.
func (r *Registry) Stats() map[string]any {
	var total, totalTools, gated, cacheable int
	r.services.Range(func(_, value any) bool {
		def := value.(Provider).Definition()
		total++
		totalTools += len(def.Tools)
		for _, tool := range def.Tools {
			if tool.RequiresApproval {
				gated++
			}
			if tool.Cacheable {
				cacheable++
			}
		}
		return true
	})

	return map[string]any{
		"total_services":  total,
		"total_tools":     totalTools,
		"gated_tools":     gated,
		"cacheable_tools": cacheable,
	}
}

func findTool(def Service, toolID string) (Tool, bool) {
	for _, tool := range def.Tools {
		if tool.ID == toolID {
			return tool, true
		}
	}
	return Tool{}, false
}

// asDataMap normalizes a cached output back into a result data map. Cached
// values round-trip through JSON, so maps come back as map[string]any.
func asDataMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": v}
}
