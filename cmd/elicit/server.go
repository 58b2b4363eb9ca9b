package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/elicit/internal/api"
	"github.com/kalambet/elicit/internal/cache"
	"github.com/kalambet/elicit/internal/config"
	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/pipeline"
	"github.com/kalambet/elicit/internal/storage"
	"github.com/kalambet/elicit/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the elicit server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(cmd.Context(), withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running elicit server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show elicit system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "elicit.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(ctx context.Context, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "elicit version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog := config.SetupLogger(cfg.Log)
	defer closeLog()
	slog.SetDefault(logger)

	apiToken, err := config.APIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	logger.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("elicit is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("elicit is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	orc, err := oracle.New(cfg.Oracle, logger)
	if err != nil {
		return fmt.Errorf("configuring oracle: %w", err)
	}
	if o, ok := orc.Backend().(*oracle.Ollama); ok && !o.IsRunning(ctx) {
		printWarning("Ollama is not reachable at %s; turns will fall back to defaults", cfg.Oracle.BaseURL)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	priorityCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("opening priority cache: %w", err)
	}
	if c, ok := priorityCache.(io.Closer); ok {
		defer c.Close()
	}

	iv := pipeline.New(store, orc, priorityCache, pipeline.Options{
		ConfidenceThreshold: cfg.Scheduling.ConfidenceThreshold,
		CompletionThreshold: cfg.Scheduling.CompletionThreshold,
		Logger:              logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(api.AppDeps{Store: store, Interviewer: iv, Token: apiToken}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	jobs := worker.New(store, map[string]worker.Handler{
		pipeline.JobBuildPriority: iv.RunPriorityJob,
		pipeline.JobPrefillSlots:  iv.RunPrefillJob,
	}, 500*time.Millisecond, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "elicit listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		jobs.Run(gctx)
		return nil
	})

	g.Go(func() error {
		err := config.Watch(gctx, config.FilePath(), func(c config.Config) {
			iv.SetThresholds(c.Scheduling.ConfidenceThreshold, c.Scheduling.CompletionThreshold)
		})
		if err != nil {
			logger.Warn("config reload disabled", "error", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Interviewer: iv})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			logger.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("elicit is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop elicit (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to elicit (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Oracle", "%s (%s)", cfg.Oracle.Provider, cfg.Oracle.Model)
	if cfg.Oracle.Provider == config.ProviderOllama {
		if oracle.NewOllama(cfg.Oracle.BaseURL, cfg.Oracle.Model, cfg.Oracle.EmbedModel).IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Oracle.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
	}
	printStatus("Cache", "%s", cfg.Cache.Backend)
	printStatus("Thresholds", "confidence %.2f, completion %.2f",
		cfg.Scheduling.ConfidenceThreshold, cfg.Scheduling.CompletionThreshold)

	if running {
		if c, err := newAPIClient(); err == nil {
			if counts, err := projectCounts(ctx, c); err == nil {
				printStatus("Projects", "%s", counts)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// projectCounts summarizes projects by status, e.g. "3 (1 Pending, 2 Ongoing)".
func projectCounts(ctx context.Context, c *apiClient) (string, error) {
	resp, err := c.get(ctx, "/projects")
	if err != nil {
		return "", err
	}
	var projects []storage.Project
	if err := decodeJSON(resp, &projects); err != nil {
		return "", err
	}
	byStatus := map[storage.ProjectStatus]int{}
	for _, p := range projects {
		byStatus[p.Status]++
	}
	var parts []string
	for _, s := range []storage.ProjectStatus{storage.ProjectPending, storage.ProjectOngoing, storage.ProjectCompleted} {
		if n := byStatus[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "0", nil
	}
	return fmt.Sprintf("%d (%s)", len(projects), strings.Join(parts, ", ")), nil
}
