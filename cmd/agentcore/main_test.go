package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "workflow", "serve"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildRootCmdHasConfigFlag(t *testing.T) {
	cmd := buildRootCmd()
	flag := cmd.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatal("expected a persistent --config flag")
	}
	if flag.DefValue != "agentcore.yaml" {
		t.Fatalf("expected default config path %q, got %q", "agentcore.yaml", flag.DefValue)
	}
}

func TestBuildWorkflowCmdIncludesRun(t *testing.T) {
	cmd := buildWorkflowCmd()
	for _, sub := range cmd.Commands() {
		if sub.Name() == "run" {
			return
		}
	}
	t.Fatal("expected workflow command to register a \"run\" subcommand")
}

func TestBuildServeCmdReturnsNotImplemented(t *testing.T) {
	cmd := buildServeCmd()
	err := cmd.RunE(cmd, nil)
	if err == nil {
		t.Fatal("expected serve to return an error, it has no façade to run")
	}
}
