package review

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"vignette/internal/services"
)

// TenantSource resolves per-tenant digest configuration.
type TenantSource interface {
	TenantConfig(ctx context.Context, tenantID string) (*TenantDigestConfig, error)
}

type tenantsFile struct {
	Tenants []TenantDigestConfig `toml:"tenant"`
}

// FileTenantSource reads tenant digest configuration from a TOML file. The
// file is re-read lazily so edits take effect on the next flush tick without a
// daemon restart.
type FileTenantSource struct {
	path string

	mu      sync.Mutex
	modTime int64
	cache   map[string]*TenantDigestConfig
}

// NewFileTenantSource builds a tenant source backed by path.
func NewFileTenantSource(path string) *FileTenantSource {
	return &FileTenantSource{path: path}
}

// TenantConfig returns the configuration for tenantID, or ErrNotFound when the
// tenant has no entry.
func (s *FileTenantSource) TenantConfig(_ context.Context, tenantID string) (*TenantDigestConfig, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, services.Wrap(services.ErrValidation, "tenants", "lookup", "empty tenant id", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	cfg, ok := s.cache[tenantID]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "tenants", "lookup", fmt.Sprintf("tenant %s not configured", tenantID), nil)
	}
	clone := *cfg
	return &clone, nil
}

func (s *FileTenantSource) refreshLocked() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "tenants", "stat", s.path, err)
	}
	mod := info.ModTime().UnixNano()
	if s.cache != nil && mod == s.modTime {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "tenants", "read", s.path, err)
	}

	var parsed tenantsFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return services.Wrap(services.ErrConfiguration, "tenants", "parse", s.path, err)
	}

	cache := make(map[string]*TenantDigestConfig, len(parsed.Tenants))
	for i := range parsed.Tenants {
		tenant := parsed.Tenants[i]
		tenant.TenantID = strings.TrimSpace(tenant.TenantID)
		if tenant.TenantID == "" {
			continue
		}
		tenant.Policy = ParseTimingPolicy(string(tenant.Policy))
		for j := range tenant.Bindings {
			binding := &tenant.Bindings[j]
			binding.Kind = ChannelKind(strings.ToLower(strings.TrimSpace(string(binding.Kind))))
		}
		cache[tenant.TenantID] = &tenant
	}

	s.cache = cache
	s.modTime = mod
	return nil
}
