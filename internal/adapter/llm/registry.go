package llm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// ErrRegistrySealed is returned when registering after Seal.
var ErrRegistrySealed = errors.New("adapter registry is sealed")

// Registry maps provider keys and model ids to adapters. It is populated at
// start-up and becomes read-only after Seal.
type Registry struct {
	mu         sync.RWMutex
	sealed     bool
	adapters   map[string]ModelAdapter
	keys       []string
	models     []domain.ModelInfo
	modelIndex map[string]int
	byProvider map[string][]domain.ModelInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters:   make(map[string]ModelAdapter),
		modelIndex: make(map[string]int),
		byProvider: make(map[string][]domain.ModelInfo),
	}
}

// Register binds a provider key to an adapter. One adapter may be registered
// under several keys.
func (r *Registry) Register(providerKey string, adapter ModelAdapter) error {
	if providerKey == "" {
		return fmt.Errorf("provider key is required")
	}
	if adapter == nil {
		return fmt.Errorf("adapter is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.adapters[providerKey]; exists {
		return fmt.Errorf("adapter already registered for %s", providerKey)
	}
	r.adapters[providerKey] = adapter
	r.keys = append(r.keys, providerKey)
	return nil
}

// AddModel adds a catalog entry. Its Provider must be a registered key.
func (r *Registry) AddModel(info domain.ModelInfo) error {
	if info.ID == "" {
		return fmt.Errorf("model id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	if _, ok := r.adapters[info.Provider]; !ok {
		return fmt.Errorf("no adapter registered for provider %s", info.Provider)
	}
	if _, exists := r.modelIndex[info.ID]; exists {
		return fmt.Errorf("model already registered: %s", info.ID)
	}
	r.modelIndex[info.ID] = len(r.models)
	r.models = append(r.models, info)
	r.byProvider[info.Provider] = append(r.byProvider[info.Provider], info)
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve returns the adapter serving modelID. A catalog id resolves to its
// provider's adapter; otherwise the longest registered key k such that
// modelID is k or starts with k+"-" wins.
func (r *Registry) Resolve(modelID string) (ModelAdapter, error) {
	if modelID == "" {
		return nil, domain.ErrNoModelSpecified
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.modelIndex[modelID]; ok {
		return r.adapters[r.models[i].Provider], nil
	}

	best := ""
	for _, key := range r.keys {
		if modelID != key && !strings.HasPrefix(modelID, key+"-") {
			continue
		}
		if len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedModel, modelID)
	}
	return r.adapters[best], nil
}

// ListModels returns the catalog in registration order.
func (r *Registry) ListModels() []domain.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ModelInfo{}, r.models...)
}

// ListByProvider returns the catalog entries of one provider in registration order.
func (r *Registry) ListByProvider(provider string) []domain.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ModelInfo{}, r.byProvider[provider]...)
}

// GetModel returns one catalog entry.
func (r *Registry) GetModel(id string) (domain.ModelInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.modelIndex[id]
	if !ok {
		return domain.ModelInfo{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedModel, id)
	}
	return r.models[i], nil
}

// Describe returns one AdapterInfo per distinct provider, in registration order.
func (r *Registry) Describe() []domain.AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	out := []domain.AdapterInfo{}
	for _, key := range r.keys {
		info := r.adapters[key].Describe()
		if seen[info.Provider] {
			continue
		}
		seen[info.Provider] = true
		out = append(out, info)
	}
	return out
}
