package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/minichat/internal/agent"
	"github.com/efebarandurmaz/minichat/internal/config"
	"github.com/efebarandurmaz/minichat/internal/gateway"
	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/llmutil"
	"github.com/efebarandurmaz/minichat/internal/node"
	"github.com/efebarandurmaz/minichat/internal/observability"
	"github.com/efebarandurmaz/minichat/internal/secrets"
	"github.com/efebarandurmaz/minichat/internal/server"
	"github.com/efebarandurmaz/minichat/internal/session"
	"github.com/efebarandurmaz/minichat/internal/tui"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "minichat",
		Short:   "Chat with a Minima node through an LLM",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "minichat.yaml", "Config file path (optional)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runServe(cmd.Context(), configPath)
		},
	}

	execCmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run one node command and print the result",
		Long: "Run one node command through the node scripts, without the LLM and without\n" +
			"the direct-API allow-list, and print the result as JSON.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runExec(cmd.Context(), configPath, strings.Join(args, " "))
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			factory := llm.NewFactory()
			llmutil.RegisterDefaultProviders(factory)

			fmt.Println("Available LLM providers:")
			fmt.Println()
			for _, name := range factory.Names() {
				base := llm.KnownProviders[name]
				if base == "" {
					base = "(set llm.base_url)"
				}
				fmt.Printf("  %-10s %-28s %s\n", name, llm.DefaultModels[name], base)
			}
			fmt.Println()
			fmt.Println("Configure in minichat.yaml or via environment:")
			fmt.Println("  LLM_PROVIDER=ollama")
			fmt.Println("  LLM_MODEL=llama3.2")
			fmt.Println("  OPENAI_API_KEY=sk-...")
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for server.password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := gateway.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, execCmd, providersCmd, hashCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	for _, w := range cfg.Validate() {
		logger.Warn("config", zap.String("warning", w))
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "minichat",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	audit, err := observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    cfg.Audit.Enabled,
		OutputPath: cfg.Audit.Path,
	})
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)
	provider, err := factory.Create(cfg.LLM.ProviderConfig())
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	info := provider.Info()

	executor := node.New(node.Config{
		ScriptDir: cfg.Node.ScriptDir,
		WorkDir:   cfg.Node.WorkDir,
		Timeout:   cfg.Node.Timeout,
	},
		node.WithLogger(logger.Named("node")),
		node.WithMetrics(metrics),
		node.WithAudit(audit),
	)
	if err := executor.CheckScripts(); err != nil {
		logger.Warn("node CLI not available, commands will fail", zap.Error(err))
	}

	reqOpts := cfg.LLM.RequestOptions()
	agentLogger := logger.Named("agent")
	store := session.NewStore(func() *agent.Agent {
		return agent.New(provider, executor,
			agent.WithLogger(agentLogger),
			agent.WithMetrics(metrics),
			agent.WithRequestOptions(reqOpts),
		)
	}, cfg.Server.SessionIdleTimeout, session.WithMetrics(metrics))

	hash, err := passwordHash(cfg.Server)
	if err != nil {
		return err
	}
	secret, err := sessionSecret(ctx, cfg.Server)
	if err != nil {
		return fmt.Errorf("session secret: %w", err)
	}

	health := server.NewHealthServer(&server.HealthConfig{Version: version})
	health.RegisterCheck("node", server.NodeScriptChecker(executor.ScriptDir(), executor.CheckScripts))
	health.RegisterCheck("llm", server.LLMHealthChecker(provider))

	gw, err := gateway.New(gateway.Config{
		PasswordHash:   hash,
		SessionSecret:  []byte(secret),
		SecureCookie:   cfg.Server.SecureCookie,
		MaxInputLength: cfg.Server.MaxInputLength,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RateLimit:      cfg.Server.RateLimit.Requests,
		RateWindow:     cfg.Server.RateLimit.Window,
		FrameAncestors: cfg.Server.FrameAncestors,
	}, store, executor, info,
		gateway.WithLogger(logger.Named("http")),
		gateway.WithMetrics(metrics),
		gateway.WithAudit(audit),
		gateway.WithHealth(health),
	)
	if err != nil {
		return err
	}
	httpServer := gw.HTTPServer(cfg.Server.Addr)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  logger,
	})
	shutdown.Add(server.ReadinessShutdownHook(health))
	shutdown.Add(server.HTTPServerShutdownHook("http", httpServer.Shutdown))
	shutdown.Add(server.TracingShutdownHook(tp.Shutdown))
	shutdown.Add(server.AuditLoggerShutdownHook(audit.Close))
	shutdown.Add(server.LoggerSyncShutdownHook(logger))

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("minichat listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("provider", info.Provider),
			zap.String("model", info.Model),
			zap.String("node_scripts", executor.ScriptDir()),
		)
		health.SetReady(true)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.Run(gctx)
	})
	return g.Wait()
}

// passwordHash prefers a configured bcrypt hash over a plain password.
func passwordHash(cfg config.ServerConfig) ([]byte, error) {
	if cfg.PasswordHash != "" {
		return []byte(cfg.PasswordHash), nil
	}
	if cfg.Password == "" {
		return nil, errors.New("no login password: set server.password_hash or CHAT_PASSWORD")
	}
	return gateway.HashPassword(cfg.Password)
}

// sessionSecret uses the configured secret, else the one stored in the
// secrets file, else a new random one that is stored for the next start.
func sessionSecret(ctx context.Context, cfg config.ServerConfig) (string, error) {
	if cfg.SessionSecret != "" {
		return cfg.SessionSecret, nil
	}
	mgr, err := secrets.NewFileManager(cfg.SecretsFile)
	if err != nil {
		return "", err
	}
	return mgr.GetOrCreate(ctx, secrets.KeySessionSecret, secrets.RandomHex(32))
}

func runExec(ctx context.Context, configPath, command string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	executor := node.New(node.Config{
		ScriptDir: cfg.Node.ScriptDir,
		WorkDir:   cfg.Node.WorkDir,
		Timeout:   cfg.Node.Timeout,
	})
	res := executor.Execute(ctx, command)

	if err := tui.DefaultStyles().RenderResult(os.Stdout, command, res); err != nil {
		return err
	}

	if !res.Status {
		return fmt.Errorf("node command failed")
	}
	return nil
}
