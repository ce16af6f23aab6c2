package manifest

import "testing"

const sampleProfile = `
profile:
  name: default-agent
  description: general purpose worker profile
  version: "1"
tools:
  allowed: [shell, http]
  denied: [rm]
egress:
  mode: allow_list
  allowed_domains: [api.internal]
budgets:
  cpu:
    reserved_cores: 1
    max_cores: 2
  memory:
    soft_mb: 512
    hard_mb: 1024
  network:
    egress_mbps: 10
    burst_mbps: 20
storage:
  roots:
    - name: workspace
      path: /work
      mode: read_write
      quota_mb: 2048
`

func TestParseProfileValid(t *testing.T) {
	p, err := ParseProfile([]byte(sampleProfile))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Profile.Name != "default-agent" {
		t.Fatalf("expected name default-agent, got %q", p.Profile.Name)
	}
	if !p.AllowsTool("shell") {
		t.Fatal("expected shell allowed")
	}
	if p.AllowsTool("rm") {
		t.Fatal("expected rm denied even though not in denied overrides allowed list absence")
	}
	if !p.AllowsDomain("api.internal") {
		t.Fatal("expected api.internal allowed")
	}
	if p.AllowsDomain("evil.example") {
		t.Fatal("expected unlisted domain denied under allow_list mode")
	}
}

func TestParseProfileRejectsInvertedBudget(t *testing.T) {
	bad := `
profile:
  name: bad
egress:
  mode: denied
budgets:
  cpu:
    reserved_cores: 4
    max_cores: 1
`
	if _, err := ParseProfile([]byte(bad)); err == nil {
		t.Fatal("expected validation error for max_cores < reserved_cores")
	}
}

func TestParseProfileRequiresProfileAndEgressBlocks(t *testing.T) {
	if _, err := ParseProfile([]byte(`tools: {}`)); err == nil {
		t.Fatal("expected error for missing profile/egress blocks")
	}
}

func TestAllowsToolDenyWinsOverAllowList(t *testing.T) {
	p := Profile{Tools: Tools{Allowed: []string{"shell"}, Denied: []string{"shell"}}}
	if p.AllowsTool("shell") {
		t.Fatal("expected explicit denial to win over allow-list entry")
	}
}

const sampleKernelManifest = `
runtimes:
  - name: go-runtime
    kind: language
    version: "1.25"
    entrypoint: /bin/go-agent
    depends_on: []
  - name: python-runtime
    kind: language
    version: "3.12"
    entrypoint: /bin/py-agent
    depends_on: [go-runtime]
token_policies:
  - scope: scheduler.dispatch
    description: dispatch tasks to agents
    ttl_seconds: 3600
    capabilities: [task.assign]
`

func TestParseKernelManifestValid(t *testing.T) {
	m, err := ParseKernelManifest([]byte(sampleKernelManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(m.RuntimePlugins()) != 2 {
		t.Fatalf("expected 2 runtime plugins, got %d", len(m.RuntimePlugins()))
	}
	if len(m.Capability()) != 1 || m.Capability()[0].Scope != "scheduler.dispatch" {
		t.Fatalf("expected one token policy for scheduler.dispatch, got %+v", m.Capability())
	}
}

func TestParseKernelManifestRejectsDuplicateRuntimeNames(t *testing.T) {
	dup := `
runtimes:
  - name: go-runtime
    kind: language
    version: "1.25"
    entrypoint: /bin/a
  - name: go-runtime
    kind: language
    version: "1.25"
    entrypoint: /bin/b
`
	if _, err := ParseKernelManifest([]byte(dup)); err == nil {
		t.Fatal("expected error for duplicate runtime name")
	}
}

func TestParseKernelManifestRejectsNonPositiveTTL(t *testing.T) {
	bad := `
token_policies:
  - scope: x
    ttl_seconds: 0
    capabilities: []
`
	if _, err := ParseKernelManifest([]byte(bad)); err == nil {
		t.Fatal("expected error for non-positive ttl_seconds")
	}
}

func TestParseKernelManifestRejectsDuplicateScopes(t *testing.T) {
	dup := `
token_policies:
  - scope: x
    ttl_seconds: 60
    capabilities: []
  - scope: x
    ttl_seconds: 120
    capabilities: []
`
	if _, err := ParseKernelManifest([]byte(dup)); err == nil {
		t.Fatal("expected error for duplicate token policy scope")
	}
}
