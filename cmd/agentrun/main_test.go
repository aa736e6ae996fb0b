package main

import (
	"testing"

	"github.com/relaykit/agentcore/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Providers = map[string]config.ProviderConfig{
		"anthropic": {APIKey: "test-anthropic-key"},
		"openai":    {APIKey: "test-openai-key"},
	}
	return cfg
}

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range []string{"run", "serve"} {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildModelClient_UnknownProviderErrors(t *testing.T) {
	if _, _, err := buildModelClient(testConfig(), "bogus", ""); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestBuildModelClient_DefaultsModelPerProvider(t *testing.T) {
	cases := []struct {
		provider string
		want     string
	}{
		{provider: "anthropic", want: "claude-3-5-haiku-latest"},
		{provider: "", want: "claude-3-5-haiku-latest"},
		{provider: "openai", want: "gpt-4o-mini"},
	}
	for _, tc := range cases {
		_, got, err := buildModelClient(testConfig(), tc.provider, "")
		if err != nil {
			t.Fatalf("provider %q: unexpected error: %v", tc.provider, err)
		}
		if got != tc.want {
			t.Fatalf("provider %q: want model %q, got %q", tc.provider, tc.want, got)
		}
	}
}
