// ABOUTME: Entry point for the oakledger API server
// ABOUTME: Wires the identity provider, verifier, federators and stores together

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/oakledger/oakledger/internal/api"
	"github.com/oakledger/oakledger/internal/audit"
	"github.com/oakledger/oakledger/internal/auth"
	"github.com/oakledger/oakledger/internal/config"
	"github.com/oakledger/oakledger/internal/federate"
	"github.com/oakledger/oakledger/internal/idp"
	"github.com/oakledger/oakledger/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
             _    _          _
  ___   __ _| | _| | ___  __| | __ _  ___ _ __
 / _ \ / _' | |/ / |/ _ \/ _' |/ _' |/ _ \ '__|
| (_) | (_| |   <| |  __/ (_| | (_| |  __/ |
 \___/ \__,_|_|\_\_|\___|\__,_|\__, |\___|_|
                               |___/
`

// getConfigPath returns the path to the config file.
// Priority: OAKLEDGER_CONFIG env var > XDG_CONFIG_HOME/oakledger/config.yaml > ~/.config/oakledger/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("OAKLEDGER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "oakledger", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: oakledger <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the API server")
		fmt.Println("  init     Write a starter config file")
		fmt.Println("  health   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Pool:    %s\n", cfg.Provider.UserPoolID)
	fmt.Println()

	logger.Info("starting oakledger",
		"config", configPath,
		"addr", cfg.Server.Addr,
		"user_pool", cfg.Provider.UserPoolID,
	)

	server, err := buildServer(cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildServer assembles the API server from configuration.
func buildServer(cfg *config.Config) (*api.Server, error) {
	hasher := auth.NewSecretHasher(cfg.Provider.ClientID, cfg.Provider.ClientSecret)
	accounts := idp.NewClient(idp.NewProviderAPI(cfg.Provider.Region), cfg.Provider.ClientID, hasher)

	keys := auth.NewKeySetCache(cfg.Provider.JWKSURL(), nil)
	verifier := auth.NewVerifier(keys, auth.VerifierConfig{
		Issuer:   cfg.Provider.Issuer(),
		ClientID: cfg.Provider.ClientID,
	})

	identityAPI := federate.NewIdentityAPI(cfg.Provider.Region)
	users := federate.New(identityAPI, federate.Config{
		Pool:        federate.PoolRegular,
		PoolID:      cfg.Pools.Regular,
		ProviderKey: cfg.Provider.LoginsKey(),
	})
	admins := federate.New(identityAPI, federate.Config{
		Pool:         federate.PoolAdmin,
		PoolID:       cfg.Pools.Admin,
		ProviderKey:  cfg.Provider.LoginsKey(),
		RequireGroup: cfg.Provider.AdminGroup,
	})

	auditLog, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("opening audit store: %w", err)
	}

	region := cfg.Provider.Region
	tables := store.Tables{
		Profiles:    cfg.Storage.ProfilesTable,
		Assets:      cfg.Storage.AssetsTable,
		Liabilities: cfg.Storage.LiabilitiesTable,
	}

	return api.New(api.Deps{
		Accounts: accounts,
		Verifier: verifier,
		Users:    users,
		Admins:   admins,
		Ledger: func(s *federate.Session) api.Ledger {
			return store.NewDBFromSession(region, s, tables)
		},
		Media: func(s *federate.Session) api.MediaStore {
			return store.NewMediaFromSession(region, s, cfg.Storage.MediaBucket, cfg.Storage.MediaPrefix)
		},
		Directory: func(s *federate.Session) api.UserDirectory {
			return idp.NewDirectoryFromSession(region, s, cfg.Provider.UserPoolID)
		},
		AuditLog:   auditLog,
		AdminGroup: cfg.Provider.AdminGroup,
	}), nil
}

// runInit writes a starter config file unless one already exists.
func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template := `server:
  addr: ":8080"
  shutdown_timeout: "10s"

provider:
  region: "ap-south-1"
  user_pool_id: ""
  client_id: ""
  client_secret: "${OAKLEDGER_CLIENT_SECRET}"
  admin_group: "admin"

pools:
  regular: ""
  admin: ""

storage:
  profiles_table: "profiles"
  assets_table: "assets"
  liabilities_table: "liabilities"
  media_bucket: ""

audit:
  path: "./data/audit.db"

logging:
  level: "info"
  format: "text"
`
	if err := os.WriteFile(configPath, []byte(template), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Wrote starter config to %s\n", configPath)
	fmt.Println("Fill in the provider and pool identifiers, then run: oakledger serve")
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	url := fmt.Sprintf("http://%s/healthz", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
