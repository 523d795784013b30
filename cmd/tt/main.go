package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/ldi/tt/internal/config"
	"github.com/ldi/tt/internal/db"
	"github.com/ldi/tt/internal/forge"
	"github.com/ldi/tt/internal/mcp"
	"github.com/ldi/tt/internal/reconcile"
	"github.com/ldi/tt/internal/ui"
	"github.com/ldi/tt/pkg/models"
)

const createdAtLayout = "2006-01-02 03:04PM"

const tableSeparator = "----------------------------------------------------------------------"

func main() {
	err := execute(os.Args[1:], os.Stderr)
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// execute parses flags, loads the configuration and dispatches the
// requested command. A bare invocation launches the TUI.
func execute(args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("tt", flag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.String("config", config.DefaultPath(), "path to the config file")
	dbPath := flags.String("db", "", "database path (overrides the config)")
	repo := flags.String("repo", "", "GitHub repository as owner/name (overrides the config)")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn or error (overrides the config)")

	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: tt [flags] [command]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Running `tt` with no command launches the TUI.")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Commands:")
		fmt.Fprintln(stderr, "  new              Allocate the next task code")
		fmt.Fprintln(stderr, "  list             List all tasks")
		fmt.Fprintln(stderr, "  delete <code>    Delete a task; its number is never reused")
		fmt.Fprintln(stderr, "  scan             Scan open pull requests for task references")
		fmt.Fprintln(stderr, "  open <code>      Open the linked pull request in the browser")
		fmt.Fprintln(stderr, "  status           Show registry counts and the next code")
		fmt.Fprintln(stderr, "  export [path]    Export the registry as a JSONL snapshot")
		fmt.Fprintln(stderr, "  import [path]    Merge a JSONL snapshot into the registry")
		fmt.Fprintln(stderr, "  mcp              Serve the MCP tools on stdio")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Flags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = config.ExpandHome(*dbPath)
	}
	if *repo != "" {
		cfg.Repo = *repo
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	tui := flags.NArg() == 0

	logger, closeLog, err := configureLogger(cfg, tui)
	if err != nil {
		return err
	}
	defer closeLog()

	if tui {
		return runTUI(cfg, logger)
	}

	command := flags.Arg(0)
	rest := flags.Args()[1:]
	switch command {
	case "new":
		return runNew(cfg)
	case "list":
		return runList(cfg)
	case "delete":
		return runDelete(cfg, rest)
	case "scan":
		return runScan(cfg, logger)
	case "open":
		return runOpen(cfg, logger, rest)
	case "status":
		return runStatus(cfg)
	case "export":
		return runExport(cfg, rest)
	case "import":
		return runImport(cfg, rest)
	case "mcp":
		return runMCP(cfg, logger)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// configureLogger builds the process logger. TUI runs log to a file so the
// alternate screen stays clean; everything else logs to stderr.
func configureLogger(cfg *config.Config, tui bool) (*slog.Logger, func(), error) {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if !tui {
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
		return logger, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
	}
	logger := slog.New(slog.NewTextHandler(f, opts))
	slog.SetDefault(logger)
	return logger, func() { f.Close() }, nil
}

func openDB(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := database.Init(context.Background()); err != nil {
		database.Close()
		return nil, err
	}
	if cfg.SnapshotPath != "" {
		database.EnableAutoSnapshot(cfg.SnapshotPath)
	}
	return database, nil
}

func newSession(database *db.DB, cfg *config.Config, logger *slog.Logger) *reconcile.Session {
	gh := forge.NewGitHub(cfg.Repo, cfg.PRLimit, cfg.GHTimeout.Duration, logger)
	return reconcile.NewSession(database, gh, gh, logger)
}

func runTUI(cfg *config.Config, logger *slog.Logger) error {
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	return ui.Run(database, newSession(database, cfg, logger), logger)
}

func runNew(cfg *config.Config) error {
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	task, err := database.AllocateTask(context.Background())
	if err != nil {
		return err
	}

	fmt.Println(task.Code)
	if clipboard.WriteAll(task.Code) == nil {
		fmt.Println("✓ Copied to clipboard")
	}
	return nil
}

func runList(cfg *config.Config) error {
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	tasks, err := database.ListTasks(context.Background())
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks yet. Run `tt new` to allocate one.")
		return nil
	}

	fmt.Printf("%-8s %-8s %-19s %-6s %s\n", "ID", "STATUS", "CREATED", "PR", "TITLE")
	fmt.Println(tableSeparator)
	for _, t := range tasks {
		pr, title := "-", ""
		if t.Link != nil {
			pr = fmt.Sprintf("#%d", t.Link.Number)
			title = t.Link.Title
		}
		fmt.Printf("%-8s %-8s %-19s %-6s %s\n",
			t.Code, t.Status, t.CreatedAt.Local().Format(createdAtLayout), pr, title)
	}
	return nil
}

func runDelete(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tt delete <code>")
	}
	code := args[0]
	if n, err := models.ParseCode(code); err == nil {
		code = models.Code(n)
	}

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.DeleteTask(context.Background(), code); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted %s\n", code)
	return nil
}

func runScan(cfg *config.Config, logger *slog.Logger) error {
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	session := newSession(database, cfg, logger)
	result, err := session.Scan(context.Background(), "")
	if err != nil {
		return err
	}
	logger.Debug("scan finished", "items", len(result.Items), "degraded", result.Degraded)

	if result.Degraded {
		fmt.Fprintf(os.Stderr, "PR source unavailable: %s\n", result.Reason)
	}
	if len(result.Items) == 0 {
		fmt.Println("No task references found in open PRs.")
		return nil
	}

	fmt.Printf("%-8s %-6s %-15s %-28s %s\n", "TASK", "PR", "ACTION", "BRANCH", "TITLE")
	fmt.Println(tableSeparator)
	for _, item := range result.Items {
		fmt.Printf("%-8s %-6s %-15s %-28s %s\n",
			item.Code, fmt.Sprintf("#%d", item.Number), item.Action, item.Candidate.Branch, item.Candidate.Title)
	}
	return nil
}

func runOpen(cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tt open <code>")
	}
	code := args[0]
	if n, err := models.ParseCode(code); err == nil {
		code = models.Code(n)
	}

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	session := newSession(database, cfg, logger)
	if err := session.OpenPR(context.Background(), code); err != nil {
		return err
	}
	fmt.Printf("✓ Opened PR for %s\n", code)
	return nil
}

func runStatus(cfg *config.Config) error {
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	tasks, err := database.ListTasks(ctx)
	if err != nil {
		return err
	}
	max, err := database.MaxAllocated(ctx)
	if err != nil {
		return err
	}

	open, linked := 0, 0
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusOpen:
			open++
		case models.TaskStatusLinked:
			linked++
		}
	}

	fmt.Println("Task Registry Status")
	fmt.Println("====================")
	fmt.Printf("Database:  %s\n", cfg.DBPath)
	fmt.Printf("Tasks:     %d (%d open, %d linked)\n", len(tasks), open, linked)
	fmt.Printf("Next code: %s\n", models.Code(max+1))
	return nil
}

// snapshotTarget resolves the snapshot path for export and import: an
// explicit argument wins, then the configured snapshot_path.
func snapshotTarget(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return config.ExpandHome(args[0]), nil
	}
	if cfg.SnapshotPath != "" {
		return cfg.SnapshotPath, nil
	}
	return "", fmt.Errorf("no snapshot path: pass one or set snapshot_path in the config")
}

func runExport(cfg *config.Config, args []string) error {
	path, err := snapshotTarget(cfg, args)
	if err != nil {
		return err
	}

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ExportSnapshot(context.Background(), path); err != nil {
		return err
	}
	fmt.Printf("✓ Exported snapshot to %s\n", path)
	return nil
}

func runImport(cfg *config.Config, args []string) error {
	path, err := snapshotTarget(cfg, args)
	if err != nil {
		return err
	}

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ImportSnapshot(context.Background(), path); err != nil {
		return err
	}
	fmt.Printf("✓ Imported snapshot from %s\n", path)
	return nil
}

func runMCP(cfg *config.Config, logger *slog.Logger) error {
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	gh := forge.NewGitHub(cfg.Repo, cfg.PRLimit, cfg.GHTimeout.Duration, logger)
	sessions := reconcile.NewSessionManager(database, gh, gh, logger)

	logger.Info("mcp server starting", "db", cfg.DBPath)
	return mcp.Serve(mcp.NewServer(database, sessions))
}
