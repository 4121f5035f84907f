package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"serve", "defaults", "prompt"} {
		require.True(t, names[name], "expected subcommand %q", name)
	}
}

func TestDefaultsCommand(t *testing.T) {
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"defaults"})
	require.NoError(t, cmd.Execute())

	var cfg evalconfig.EvaluationConfig
	require.NoError(t, json.Unmarshal(out.Bytes(), &cfg))
	require.Equal(t, evalconfig.Defaults(), cfg)
}

func TestPromptCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{name: "answer fast", args: []string{"prompt", "--style", "Fast", "--language", "en"}, want: "{query}"},
		{name: "docs", args: []string{"prompt", "--kind", "docs", "--language", "en"}, want: "{query}"},
		{name: "bad language", args: []string{"prompt", "--language", "fr"}, wantErr: true},
		{name: "bad style", args: []string{"prompt", "--style", "loud"}, wantErr: true},
		{name: "bad kind", args: []string{"prompt", "--kind", "poem"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := buildRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.want)
		})
	}
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	require.Equal(t, "", firstNonEmpty())
}
