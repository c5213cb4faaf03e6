package command

import "encoding/json"

// Resource is one entry in the resource inventory exposed to clients.
type Resource struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// Provider supplies the resource data that commands operate on. The
// dispatcher only depends on this interface, so a real backend can replace
// the static demo data without touching dispatch logic.
type Provider interface {
	// List returns the current resource inventory.
	List() []Resource

	// Update applies an update payload to the resource with the given
	// id. The payload has already been validated as present.
	Update(id string, data json.RawMessage) error
}

// StaticProvider serves a fixed in-memory resource list and accepts all
// updates without applying them. It is the demo backend.
type StaticProvider struct {
	resources []Resource
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider with the demo inventory.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		resources: []Resource{
			{ID: "srv-001", Name: "Primary Server", Type: "server", Status: "online"},
			{ID: "srv-002", Name: "Backup Server", Type: "server", Status: "standby"},
			{ID: "db-001", Name: "Main Database", Type: "database", Status: "online"},
			{ID: "cache-001", Name: "Cache Cluster", Type: "cache", Status: "online"},
		},
	}
}

// List implements Provider. The returned slice is a copy.
func (p *StaticProvider) List() []Resource {
	return append([]Resource(nil), p.resources...)
}

// Update implements Provider. The static backend acknowledges updates
// without persisting them.
func (p *StaticProvider) Update(id string, data json.RawMessage) error {
	return nil
}
