package router

import (
	"errors"
	"testing"

	"github.com/atelierhq/loom-core/internal/config"
	"github.com/atelierhq/loom-core/internal/types"
)

func testDescriptors() []config.ProviderDescriptor {
	return []config.ProviderDescriptor{
		{
			Name:             "openrouter",
			Tier:             types.TierAggregator,
			Priority:         1,
			Endpoint:         "https://openrouter.example",
			ProbePath:        "/api/v1/models",
			CostPer1KTokens:  0.008,
			MaxContextLength: 200000,
			Models:           []string{"anthropic/claude-3.7-sonnet"},
			Enabled:          true,
		},
		{
			Name:             "local-ollama",
			Tier:             types.TierSelfHosted,
			Priority:         1,
			Endpoint:         "http://127.0.0.1:11434",
			MaxContextLength: 32768,
			Enabled:          true,
		},
		{
			Name:             "deepseek",
			Tier:             types.TierHostedFast,
			Priority:         1,
			Endpoint:         "https://api.deepseek.example",
			ProbePath:        "/v1/models",
			CostPer1KTokens:  0.002,
			MaxContextLength: 65536,
			Models:           []string{"deepseek-chat"},
			Enabled:          true,
		},
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(testDescriptors())

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d descriptors, want 3", len(list))
	}
	want := []string{"deepseek", "local-ollama", "openrouter"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("List()[%d].Name = %q, want %q", i, list[i].Name, name)
		}
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(testDescriptors())

	desc, enabled, ok := r.Get("deepseek")
	if !ok {
		t.Fatal("Get(deepseek) not found")
	}
	if !enabled {
		t.Error("Get(deepseek) enabled = false, want true")
	}
	if desc.Tier != types.TierHostedFast {
		t.Errorf("Get(deepseek) tier = %q, want %q", desc.Tier, types.TierHostedFast)
	}

	if _, _, ok := r.Get("nope"); ok {
		t.Error("Get(nope) found, want missing")
	}
}

func TestRegistrySetEnabled(t *testing.T) {
	r := NewRegistry(testDescriptors())

	if err := r.SetEnabled("deepseek", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	_, enabled, _ := r.Get("deepseek")
	if enabled {
		t.Error("deepseek still enabled after SetEnabled(false)")
	}

	// The live flag must be folded into List output.
	for _, d := range r.List() {
		if d.Name == "deepseek" && d.Enabled {
			t.Error("List() shows deepseek enabled after SetEnabled(false)")
		}
	}

	err := r.SetEnabled("nope", true)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("SetEnabled(nope) error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistryReloadOverwritesAdminState(t *testing.T) {
	descs := testDescriptors()
	r := NewRegistry(descs)

	if err := r.SetEnabled("deepseek", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	r.Reload(descs)

	_, enabled, ok := r.Get("deepseek")
	if !ok {
		t.Fatal("deepseek missing after reload")
	}
	if !enabled {
		t.Error("reload should restore the file's enabled flag")
	}
}

func TestRegistryReloadReplacesSet(t *testing.T) {
	r := NewRegistry(testDescriptors())

	r.Reload([]config.ProviderDescriptor{{
		Name:    "groq",
		Tier:    types.TierHostedFast,
		Models:  []string{"llama-3.3-70b-versatile"},
		Enabled: true,
	}})

	if _, _, ok := r.Get("openrouter"); ok {
		t.Error("openrouter survived a reload that removed it")
	}
	if _, _, ok := r.Get("groq"); !ok {
		t.Error("groq missing after reload that added it")
	}
	if got := len(r.List()); got != 1 {
		t.Errorf("List() returned %d descriptors after reload, want 1", got)
	}
}
