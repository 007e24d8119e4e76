package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/pantry/internal/classify"
	"github.com/zombor/pantry/internal/inventory"
	"github.com/zombor/pantry/internal/pantry"
	"github.com/zombor/pantry/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// config holds the root flags shared by every subcommand
type config struct {
	dbPath       *string
	rulesPath    *string
	enricher     *string
	googleAPIKey *string
	googleCX     *string
	geminiKey    *string
	geminiModel  *string
	ollamaURL    *string
	ollamaModel  *string
}

// app is the wired pipeline used by a subcommand
type app struct {
	db       *inventory.BoltDB
	searcher classify.Searcher
	service  *pantry.Service
}

func (a *app) Close() {
	if a.searcher != nil {
		a.searcher.Close()
	}
	a.db.Close()
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Values from .env never override the real environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("PANTRY")); err != nil {
		if errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
			if errors.Is(err, ff.ErrHelp) {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *ff.Command {
	rootFlags := ff.NewFlagSet("pantry")
	cfg := &config{
		dbPath:       rootFlags.StringLong("db", "pantry.db", "Inventory database file path"),
		rulesPath:    rootFlags.StringLong("rules", "", "Keyword rule table (YAML); built-in table when empty"),
		enricher:     rootFlags.StringLong("enricher", "auto", "Product enrichment: 'auto', 'none', 'search', 'gemini' or 'ollama'"),
		googleAPIKey: rootFlags.StringLong("google-api-key", "", "Google API key for Custom Search (or set GOOGLE_API_KEY env var)"),
		googleCX:     rootFlags.StringLong("google-cx", "", "Custom Search engine ID (or set GOOGLE_SEARCH_ENGINE_ID env var)"),
		geminiKey:    rootFlags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:  rootFlags.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name"),
		ollamaURL:    rootFlags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:  rootFlags.StringLong("ollama-model", "llama3.1", "Ollama model name"),
	}
	rootFlags.BoolLong("version", "Show version information")

	root := &ff.Command{
		Name:      "pantry",
		Usage:     "pantry [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "track household stock from purchase receipts",
		Flags:     rootFlags,
	}
	root.Subcommands = []*ff.Command{
		importCommand(cfg, rootFlags),
		stockCommand(cfg, rootFlags),
		expiringCommand(cfg, rootFlags),
		consumeCommand(cfg, rootFlags),
		expireCommand(cfg, rootFlags),
		serveCommand(cfg, rootFlags),
	}
	return root
}

// setup opens the database and wires the import pipeline
func setup(cfg *config, images receipt.ImageStore) (*app, error) {
	rules, err := loadRules(*cfg.rulesPath)
	if err != nil {
		return nil, err
	}

	db, err := inventory.NewBoltDB(*cfg.dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	searcher, err := newSearcher(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	var enricher *classify.Enricher
	if searcher != nil {
		enricher = classify.NewEnricher(searcher, rules)
	}
	resolver := classify.NewResolver(db, rules, enricher)

	return &app{
		db:       db,
		searcher: searcher,
		service:  pantry.NewService(db, resolver, images),
	}, nil
}

func loadRules(path string) (classify.Rules, error) {
	var (
		rules classify.Rules
		err   error
	)
	if path == "" {
		rules, err = classify.DefaultRules()
	} else {
		rules, err = classify.LoadRules(path)
	}
	if err != nil {
		return classify.Rules{}, fmt.Errorf("loading rules: %w", err)
	}

	slog.Debug("Loaded rule table", "path", path, "rules", rules.Len())
	return rules, nil
}

// newSearcher builds the configured enrichment backend, nil for none.
// auto enables Custom Search when both credentials are present.
func newSearcher(cfg *config) (classify.Searcher, error) {
	switch *cfg.enricher {
	case "none":
		return nil, nil
	case "", "auto", "search":
		apiKey := firstNonEmpty(*cfg.googleAPIKey, os.Getenv("GOOGLE_API_KEY"))
		engineID := firstNonEmpty(*cfg.googleCX, os.Getenv("GOOGLE_SEARCH_ENGINE_ID"))
		if apiKey == "" || engineID == "" {
			if *cfg.enricher == "search" {
				slog.Warn("Custom Search credentials missing, enrichment disabled")
			}
			return nil, nil
		}
		slog.Info("Initializing Custom Search enrichment...")
		return classify.NewCustomSearch(apiKey, engineID, "")
	case "gemini":
		apiKey := firstNonEmpty(*cfg.geminiKey, os.Getenv("GEMINI_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini enrichment...", "model", *cfg.geminiModel)
		return classify.NewGemini(apiKey, *cfg.geminiModel, "")
	case "ollama":
		slog.Info("Initializing Ollama enrichment...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		return classify.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid enricher %q: want auto, none, search, gemini or ollama", *cfg.enricher)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
