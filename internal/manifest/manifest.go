// Package manifest implements the Manifest & Profile Loader (C1): parses
// the kernel manifest and profile documents (§6.1) into the runtime
// plugin list, token policies, and budget/egress constraints consumed by
// the rest of the control plane.
package manifest

import (
	"fmt"
	"os"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/agentkernel/core/internal/capability"
	"github.com/agentkernel/core/internal/runtime"
	"github.com/agentkernel/core/internal/types"
)

// EgressMode constrains a profile's network egress.
type EgressMode string

const (
	EgressDenied       EgressMode = "denied"
	EgressAllowList    EgressMode = "allow_list"
	EgressUnrestricted EgressMode = "unrestricted"
)

// CPUBudget is the profile's reserved/max CPU core allotment.
type CPUBudget struct {
	ReservedCores float64 `yaml:"reserved_cores" validate:"gte=0"`
	MaxCores      float64 `yaml:"max_cores" validate:"gtefield=ReservedCores"`
}

// MemoryBudget is the profile's soft/hard memory ceiling in megabytes.
type MemoryBudget struct {
	SoftMB int64 `yaml:"soft_mb" validate:"gte=0"`
	HardMB int64 `yaml:"hard_mb" validate:"gtefield=SoftMB"`
}

// NetworkBudget is the profile's egress bandwidth allotment.
type NetworkBudget struct {
	EgressMbps float64 `yaml:"egress_mbps" validate:"gte=0"`
	BurstMbps  float64 `yaml:"burst_mbps" validate:"gtefield=EgressMbps"`
}

// Budgets bundles a profile's resource ceilings.
type Budgets struct {
	CPU     CPUBudget     `yaml:"cpu"`
	Memory  MemoryBudget  `yaml:"memory"`
	Network NetworkBudget `yaml:"network"`
}

// StorageMode constrains how a storage root may be accessed.
type StorageMode string

const (
	StorageReadOnly  StorageMode = "read_only"
	StorageReadWrite StorageMode = "read_write"
)

// StorageRoot is one entry of a profile's `[[storage.roots]]` table.
type StorageRoot struct {
	Name    string      `yaml:"name" validate:"required"`
	Path    string      `yaml:"path" validate:"required"`
	Mode    StorageMode `yaml:"mode" validate:"required,oneof=read_only read_write"`
	QuotaMB int64       `yaml:"quota_mb,omitempty" validate:"gte=0"`
}

// Egress is a profile's `[egress]` block.
type Egress struct {
	Mode           EgressMode `yaml:"mode" validate:"required,oneof=denied allow_list unrestricted"`
	AllowedDomains []string   `yaml:"allowed_domains,omitempty"`
	Notes          string     `yaml:"notes,omitempty"`
}

// Tools is a profile's `[tools]` block.
type Tools struct {
	Allowed []string `yaml:"allowed,omitempty"`
	Denied  []string `yaml:"denied,omitempty"`
}

// ProfileInfo is a profile's `[profile]` block.
type ProfileInfo struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version,omitempty"`
}

// Profile is a fully parsed profile document (§6.1).
type Profile struct {
	Profile ProfileInfo   `yaml:"profile" validate:"required"`
	Tools   Tools         `yaml:"tools"`
	Egress  Egress        `yaml:"egress" validate:"required"`
	Budgets Budgets       `yaml:"budgets"`
	Storage struct {
		Roots []StorageRoot `yaml:"roots"`
	} `yaml:"storage"`
}

// AllowsTool reports whether a tool name is permitted by this profile:
// explicit denial wins over an allow-list, and an empty allow-list means
// "no restriction" unless the tool is explicitly denied.
func (p Profile) AllowsTool(name string) bool {
	for _, d := range p.Tools.Denied {
		if d == name {
			return false
		}
	}
	if len(p.Tools.Allowed) == 0 {
		return true
	}
	for _, a := range p.Tools.Allowed {
		if a == name {
			return true
		}
	}
	return false
}

// AllowsDomain reports whether egress to a domain is permitted.
func (p Profile) AllowsDomain(domain string) bool {
	switch p.Egress.Mode {
	case EgressDenied:
		return false
	case EgressUnrestricted:
		return true
	case EgressAllowList:
		for _, d := range p.Egress.AllowedDomains {
			if d == domain {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// KernelManifest is the top-level manifest document: the runtime plugin
// declarations and token policy table that seed C4 and C2 respectively.
type KernelManifest struct {
	Runtimes      []runtime.PluginEntry    `yaml:"runtimes"`
	TokenPolicies []capability.TokenPolicy `yaml:"token_policies"`
}

var validate = validator.New()

// LoadProfile reads and validates a profile document from path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, types.NewError(types.KindExternal, "manifest.LoadProfile", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses and validates a profile document from raw bytes.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, types.NewError(types.KindConfiguration, "manifest.ParseProfile", fmt.Errorf("malformed profile: %w", err))
	}
	if p.Profile.Name == "" {
		return Profile{}, types.NewError(types.KindConfiguration, "manifest.ParseProfile", fmt.Errorf("missing [profile] block"))
	}
	if p.Egress.Mode == "" {
		return Profile{}, types.NewError(types.KindConfiguration, "manifest.ParseProfile", fmt.Errorf("missing [egress] block"))
	}
	if err := validate.Struct(p); err != nil {
		return Profile{}, types.NewError(types.KindConfiguration, "manifest.ParseProfile", fmt.Errorf("invalid profile: %w", err))
	}
	for _, root := range p.Storage.Roots {
		if err := validate.Struct(root); err != nil {
			return Profile{}, types.NewError(types.KindConfiguration, "manifest.ParseProfile", fmt.Errorf("invalid storage root %q: %w", root.Name, err))
		}
	}
	return p, nil
}

// LoadKernelManifest reads and validates a kernel manifest from path.
func LoadKernelManifest(path string) (KernelManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KernelManifest{}, types.NewError(types.KindExternal, "manifest.LoadKernelManifest", err)
	}
	return ParseKernelManifest(data)
}

// ParseKernelManifest parses and validates a kernel manifest from raw
// bytes, rejecting duplicate runtime names and unknown dependencies up
// front (the fuller cycle check happens in runtime.FromManifest).
func ParseKernelManifest(data []byte) (KernelManifest, error) {
	var m KernelManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return KernelManifest{}, types.NewError(types.KindConfiguration, "manifest.ParseKernelManifest", fmt.Errorf("malformed manifest: %w", err))
	}

	seen := make(map[string]bool, len(m.Runtimes))
	for _, r := range m.Runtimes {
		if r.Name == "" {
			return KernelManifest{}, types.NewError(types.KindConfiguration, "manifest.ParseKernelManifest", fmt.Errorf("runtime entry missing name"))
		}
		if seen[r.Name] {
			return KernelManifest{}, types.NewError(types.KindConfiguration, "manifest.ParseKernelManifest", fmt.Errorf("duplicate runtime name %q", r.Name))
		}
		seen[r.Name] = true
	}
	for _, r := range m.Runtimes {
		for _, dep := range r.DependsOn {
			if !seen[dep] {
				return KernelManifest{}, types.NewError(types.KindDependency, "manifest.ParseKernelManifest", fmt.Errorf("runtime %q depends on unknown runtime %q", r.Name, dep))
			}
		}
	}

	scopes := make(map[string]bool, len(m.TokenPolicies))
	for _, tp := range m.TokenPolicies {
		if tp.Scope == "" {
			return KernelManifest{}, types.NewError(types.KindConfiguration, "manifest.ParseKernelManifest", fmt.Errorf("token policy missing scope"))
		}
		if scopes[tp.Scope] {
			return KernelManifest{}, types.NewError(types.KindConfiguration, "manifest.ParseKernelManifest", fmt.Errorf("duplicate token policy scope %q", tp.Scope))
		}
		scopes[tp.Scope] = true
		if tp.TTLSeconds <= 0 {
			return KernelManifest{}, types.NewError(types.KindConfiguration, "manifest.ParseKernelManifest", fmt.Errorf("token policy %q has non-positive ttl_seconds", tp.Scope))
		}
	}

	return m, nil
}

// RuntimePlugins returns the manifest's runtime entries, already
// validated for duplicate names (dependency-cycle validation happens in
// runtime.FromManifest).
func (m KernelManifest) RuntimePlugins() []runtime.PluginEntry {
	return m.Runtimes
}

// Capability returns the manifest's token policy table, ready for
// capability.Service.Configure.
func (m KernelManifest) Capability() []capability.TokenPolicy {
	return m.TokenPolicies
}
