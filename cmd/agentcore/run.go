package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/sandbox"
	"github.com/agentcore/runtime/internal/session"
	"github.com/agentcore/runtime/internal/tools/echo"
)

func buildRunCmd() *cobra.Command {
	var (
		providerName string
		model        string
		systemPrompt string
		sandboxRoot  string
		maxTurns     int
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a single agent turn loop to completion, streaming its events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if providerName == "" {
				providerName = cfg.DefaultProvider
			}
			if providerName == "" {
				return fmt.Errorf("no provider specified and no default_provider configured")
			}

			prov, err := buildProvider(providerName, cfg.Providers[providerName])
			if err != nil {
				return fmt.Errorf("build provider: %w", err)
			}
			if model == "" {
				model = cfg.Providers[providerName].DefaultModel
			}

			tools := agent.NewRegistry()
			if err := tools.Register(echo.New()); err != nil {
				return fmt.Errorf("register echo tool: %w", err)
			}

			agentCfg := agent.Config{
				Provider:     prov,
				Model:        model,
				SystemPrompt: systemPrompt,
				Tools:        tools,
				MaxTurns:     maxTurns,
			}

			if root := sandboxRoot; root != "" || cfg.Sandbox.RootDir != "" {
				if root == "" {
					root = cfg.Sandbox.RootDir
				}
				sb, err := sandbox.New(sandbox.Config{
					RootDir:           root,
					AllowedCommands:   cfg.Sandbox.AllowedCommands,
					BannedCommands:    cfg.Sandbox.BannedCommands,
					Network:           sandbox.NetworkPolicy(cfg.Sandbox.Network),
					PermissionTimeout: cfg.Sandbox.PermissionTimeout,
				})
				if err != nil {
					return fmt.Errorf("build sandbox: %w", err)
				}
				agentCfg.WorkingDir = sb.RootDir()
			}

			a := agent.New(agentCfg, session.NewInMemory())

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			events, err := a.Run(ctx, agent.RunOptions{Content: prompt})
			if err != nil {
				return fmt.Errorf("start run: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for ev := range events {
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("encode event: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "provider name (defaults to the config file's default_provider)")
	cmd.Flags().StringVar(&model, "model", "", "model ID (defaults to the provider's default_model)")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "system prompt")
	cmd.Flags().StringVar(&sandboxRoot, "sandbox-root", "", "directory to scope the run's sandbox to (defaults to the config file's sandbox.root_dir)")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "maximum turn-loop iterations (0 uses the agent's default)")

	return cmd
}
