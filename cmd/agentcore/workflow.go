package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/manager"
	"github.com/agentcore/runtime/internal/provider"
	"github.com/agentcore/runtime/internal/sandbox"
	"github.com/agentcore/runtime/internal/tools/echo"
	"github.com/agentcore/runtime/internal/workflow"
	"github.com/agentcore/runtime/pkg/models"
)

// workflowDocument is the YAML shape a workflow schema file is written
// in; loadWorkflowSchema resolves it (and the shared config file's provider
// credentials) into a workflow.Schema.
type workflowDocument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MainAgent   struct {
		Model        string  `yaml:"model"`
		SystemPrompt string  `yaml:"system_prompt"`
		MaxTurns     int     `yaml:"max_turns"`
		Temperature  float64 `yaml:"temperature"`
	} `yaml:"main_agent"`
	DefaultProvider string   `yaml:"default_provider"`
	Providers       []string `yaml:"providers"`
	Delegation      *struct {
		Disabled         bool     `yaml:"disabled"`
		MaxConcurrent    int      `yaml:"max_concurrent"`
		MaxTurnsPerAgent int      `yaml:"max_turns_per_agent"`
		AllowedModels    []string `yaml:"allowed_models"`
		InheritTools     bool     `yaml:"inherit_tools"`
	} `yaml:"delegation"`
}

func loadWorkflowSchema(path string, cfg *config.Config) (workflow.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.Schema{}, fmt.Errorf("read workflow schema: %w", err)
	}
	var doc workflowDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return workflow.Schema{}, fmt.Errorf("parse workflow schema: %w", err)
	}

	providerNames := doc.Providers
	if len(providerNames) == 0 {
		for name := range cfg.Providers {
			providerNames = append(providerNames, name)
		}
	}
	providers := make(map[string]provider.Provider, len(providerNames))
	for _, name := range providerNames {
		prov, err := buildProvider(name, cfg.Providers[name])
		if err != nil {
			return workflow.Schema{}, fmt.Errorf("build provider %q: %w", name, err)
		}
		providers[name] = prov
	}

	schema := workflow.Schema{
		Name:        doc.Name,
		Description: doc.Description,
		MainAgent: workflow.MainAgentConfig{
			Model:        doc.MainAgent.Model,
			SystemPrompt: doc.MainAgent.SystemPrompt,
			MaxTurns:     doc.MainAgent.MaxTurns,
			Temperature:  doc.MainAgent.Temperature,
		},
		Providers:       providers,
		DefaultProvider: doc.DefaultProvider,
		SharedTools:     []agent.Tool{echo.New()},
	}

	if doc.Delegation != nil {
		schema.Delegation = &workflow.DelegationConfig{
			Disabled:         doc.Delegation.Disabled,
			MaxConcurrent:    doc.Delegation.MaxConcurrent,
			MaxTurnsPerAgent: doc.Delegation.MaxTurnsPerAgent,
			AllowedModels:    doc.Delegation.AllowedModels,
			InheritTools:     doc.Delegation.InheritTools,
		}
	}

	if cfg.Sandbox.RootDir != "" {
		schema.Sandbox = &sandbox.Config{
			RootDir:           cfg.Sandbox.RootDir,
			AllowedCommands:   cfg.Sandbox.AllowedCommands,
			BannedCommands:    cfg.Sandbox.BannedCommands,
			Network:           sandbox.NetworkPolicy(cfg.Sandbox.Network),
			PermissionTimeout: cfg.Sandbox.PermissionTimeout,
		}
	}

	return schema, nil
}

func buildWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run declarative workflows composing a main agent with bounded delegation",
	}
	cmd.AddCommand(buildWorkflowRunCmd())
	return cmd
}

func buildWorkflowRunCmd() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a workflow schema to completion, streaming its events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			schema, err := loadWorkflowSchema(schemaPath, cfg)
			if err != nil {
				return err
			}

			workflows := manager.NewWorkflowManager(nil)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			runID, err := workflows.StartRun(ctx, schema, prompt)
			if err != nil {
				return fmt.Errorf("start workflow run: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			seen := 0
			for {
				info, ok := workflows.GetRun(runID)
				if !ok {
					return fmt.Errorf("workflow run %s disappeared", runID)
				}
				events, _ := workflows.GetEvents(runID, 0)
				for ; seen < len(events); seen++ {
					if err := enc.Encode(events[seen]); err != nil {
						return fmt.Errorf("encode event: %w", err)
					}
				}
				if info.Status == models.RunStatusCompleted || info.Status == models.RunStatusError || info.Status == models.RunStatusCanceled {
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(50 * time.Millisecond):
				}
			}
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "workflow.yaml", "path to the workflow schema YAML file")
	return cmd
}
