// Command agentrun is a demo CLI proving the Runner's single-shot and
// streaming-server contracts end to end against a real provider. It is not
// a production agent host: one agent, one provider, no multi-tenant
// routing. Grounded on the teacher's cobra command-tree shape
// (other_examples' haasonsaas-nexus cmd/nexus/main.go buildRootCmd /
// sub-builder pattern), adapted from its channel/gateway subcommands onto
// "run" (one-shot) and "serve" (SSE+WS server) subcommands for this engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaykit/agentcore/agent"
	"github.com/relaykit/agentcore/config"
	"github.com/relaykit/agentcore/model"
	"github.com/relaykit/agentcore/model/anthropic"
	"github.com/relaykit/agentcore/model/openai"
	"github.com/relaykit/agentcore/runner"
	"github.com/relaykit/agentcore/session/inmem"
	"github.com/relaykit/agentcore/telemetry"
	"github.com/relaykit/agentcore/tool"
	"github.com/relaykit/agentcore/transport/sse"
	"github.com/relaykit/agentcore/transport/ws"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("agentrun: command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		configPath string
		provider   string
		modelName  string
		appName    string
		userID     string
		sessionID  string
	)

	root := &cobra.Command{
		Use:   "agentrun",
		Short: "Run or serve a single demo agent backed by this engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	root.PersistentFlags().StringVar(&provider, "provider", "anthropic", "model provider: anthropic|openai")
	root.PersistentFlags().StringVar(&modelName, "model", "", "provider model name (defaults per provider)")
	root.PersistentFlags().StringVar(&appName, "app", "agentrun", "app name recorded on the session")
	root.PersistentFlags().StringVar(&userID, "user", "demo-user", "user id recorded on the session")
	root.PersistentFlags().StringVar(&sessionID, "session", "demo-session", "session id to load or create")

	root.AddCommand(buildRunCmd(&configPath, &provider, &modelName, &appName, &userID, &sessionID))
	root.AddCommand(buildServeCmd(&configPath, &provider, &modelName))
	return root
}

func buildRunCmd(configPath, provider, modelName, appName, userID, sessionID *string) *cobra.Command {
	var instruction string
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Run one turn against the demo agent and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner(*configPath, *provider, *modelName, instruction)
			if err != nil {
				return err
			}
			res, err := r.Run(cmd.Context(), *appName, *userID, *sessionID, args[0])
			if err != nil {
				return fmt.Errorf("agentrun: run: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.FinalResponse)
			fmt.Fprintf(cmd.ErrOrStderr(), "iterations=%d tool_calls=%d tokens=%d errors=%d\n",
				res.Metrics.Iterations, res.Metrics.ToolCalls, res.Metrics.TokensUsed, res.Metrics.Errors)
			return nil
		},
	}
	cmd.Flags().StringVar(&instruction, "instruction", "You are a concise, helpful assistant.", "system instruction for the demo agent")
	return cmd
}

func buildServeCmd(configPath, provider, modelName *string) *cobra.Command {
	var (
		addr        string
		instruction string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo agent over SSE (/stream) and WebSocket (/ws)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildRunner(*configPath, *provider, *modelName, instruction)
			if err != nil {
				return err
			}
			mux := http.NewServeMux()
			mux.Handle("/stream", sse.NewHandler(r))
			mux.Handle("/ws", ws.NewHandler(r))

			slog.Info("agentrun: listening", "addr", addr)
			server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			return server.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&instruction, "instruction", "You are a concise, helpful assistant.", "system instruction for the demo agent")
	return cmd
}

// buildRunner wires a config-driven model.Client, a demo clock tool, an
// LlmAgent, and a Runner backed by an in-memory session store.
func buildRunner(configPath, provider, modelName, instruction string) (*runner.Runner, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	client, resolvedModel, err := buildModelClient(cfg, provider, modelName)
	if err != nil {
		return nil, err
	}

	logger := telemetry.NewSlogLogger(nil)
	a := agent.New(agent.Config{
		Name:        "demo",
		Description: "a single demo agent exercising the Runner end to end",
		Model:       client,
		ModelName:   resolvedModel,
		Instruction: instruction,
		Tools:       []tool.Tool{currentTimeTool{}},
		Generation:  cfg.Generation,
	})

	return runner.New(runner.Config{
		Agent:          a,
		Store:          inmem.New(),
		Timeout:        cfg.Runner.Timeout,
		MaxIterations:  cfg.Runner.MaxIterations,
		MaxHistorySize: cfg.Runner.MaxHistorySize,
		Logger:         logger,
		Metrics:        telemetry.NewNoopMetrics(),
	}), nil
}

func buildModelClient(cfg config.Config, provider, modelName string) (model.Client, string, error) {
	switch provider {
	case "openai":
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}
		c, err := openai.NewFromAPIKey(cfg.ProviderCredential("openai"), modelName)
		return c, modelName, err
	case "anthropic", "":
		if modelName == "" {
			modelName = "claude-3-5-haiku-latest"
		}
		c, err := anthropic.NewFromAPIKey(cfg.ProviderCredential("anthropic"), modelName)
		return c, modelName, err
	default:
		return nil, "", fmt.Errorf("agentrun: unknown provider %q", provider)
	}
}

// currentTimeTool is a minimal demo tool proving the dispatch round trip
// without depending on any external service.
type currentTimeTool struct{}

func (currentTimeTool) Name() string        { return "current_time" }
func (currentTimeTool) Description() string { return "Returns the current UTC time." }
func (currentTimeTool) ParametersSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (currentTimeTool) IsLongRunning() bool { return false }

func (currentTimeTool) Execute(ctx context.Context, tc *tool.Context, args map[string]any) (tool.Result, error) {
	payload, err := json.Marshal(map[string]string{"utc": time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Raw: string(payload), Preview: string(payload)}, nil
}
