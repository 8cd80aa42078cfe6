package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wildtale-io/wildtale/internal/agent"
	"github.com/wildtale-io/wildtale/internal/config"
	"github.com/wildtale-io/wildtale/internal/connector"
	"github.com/wildtale-io/wildtale/internal/game"
	"github.com/wildtale-io/wildtale/internal/provider"
	"github.com/wildtale-io/wildtale/internal/style"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "play":
		cmdPlay(os.Args[2:])
	case "health":
		cmdHealth()
	case "sessions":
		if len(os.Args) < 3 || os.Args[2] != "list" {
			fmt.Fprintln(os.Stderr, "usage: wildtalectl sessions list")
			os.Exit(1)
		}
		cmdSessionsList(os.Args[3:])
	case "traces":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wildtalectl traces <show|tail>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: wildtalectl traces show <session_id>")
				os.Exit(1)
			}
			cmdTracesShow(os.Args[3])
		case "tail":
			cmdTracesTail(os.Args[3:])
		default:
			fmt.Fprintf(os.Stderr, "unknown traces subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: wildtalectl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// --- play command: local in-process run ---

func cmdPlay(args []string) {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	provType := fs.String("provider", envOr("WILDTALE_PROVIDER", "openai"), "Provider type: openai or anthropic")
	model := fs.String("model", envOr("WILDTALE_MODEL", ""), "LLM model name")
	apiKey := fs.String("api-key", "", "API key (or set OPENAI_API_KEY / ANTHROPIC_API_KEY)")
	baseURL := fs.String("base-url", envOr("WILDTALE_BASE_URL", ""), "Override API base URL")
	styleSlug := fs.String("style", "", "Narration style pack slug")
	stylesDir := fs.String("styles-dir", envOr("WILDTALE_STYLES_DIR", ""), "Style packs directory")
	seed := fs.Int64("seed", 0, "Session seed (0 = random)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if *apiKey == "" {
		switch *provType {
		case "anthropic":
			*apiKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			*apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "error: API key required (--api-key, OPENAI_API_KEY, or ANTHROPIC_API_KEY)")
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var completer agent.Completer
	switch *provType {
	case "anthropic":
		if *model == "" {
			*model = "claude-sonnet-4-20250514"
		}
		opts := []provider.AnthropicOption{provider.WithAnthropicModel(*model)}
		if *baseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(*baseURL))
		}
		completer = provider.NewAnthropic(*apiKey, opts...)
	default:
		if *model == "" {
			*model = "gpt-4o"
		}
		opts := []provider.OpenAIOption{provider.WithModel(*model)}
		if *baseURL != "" {
			opts = append(opts, provider.WithBaseURL(*baseURL))
		}
		completer = provider.NewOpenAI(*apiKey, opts...)
	}

	svc := game.New(completer,
		game.WithStyles(style.Load(*stylesDir)),
		game.WithLogger(logger),
	)

	ctx := context.Background()
	team := connector.DefaultTeam()

	start, err := svc.StartSession(ctx, team, *styleSlug, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	state := game.NewSession(start, team, *styleSlug)

	fmt.Printf("=== %s ===\n", start.Quest.Title)
	fmt.Printf("%s (%s, %d steps, seed %d)\n\n", start.Quest.Objective, start.Quest.Difficulty, start.Quest.TargetStepCount, start.Seed)

	scanner := bufio.NewScanner(os.Stdin)
	for !state.TeamWiped() {
		bundle, err := svc.AdvanceEvent(ctx, state)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("--- Step %d/%d | score %d ---\n", state.CurrentStep+1, state.Quest.TargetStepCount, state.CumulativeScore)
		fmt.Println(bundle.Narration)
		if bundle.Event.EnemyName != "" {
			fmt.Printf("A wild %s appears (power %.0f).\n", bundle.Event.EnemyName, bundle.Event.EnemyPower)
		}
		fmt.Println()
		for i, c := range bundle.Choices {
			fmt.Printf("  %d. %s (%s)\n", i+1, c.Label, c.Risk)
		}

		choice, ok := readChoice(scanner, len(bundle.Choices))
		if !ok {
			fmt.Println("bye")
			return
		}

		res, err := svc.ResolveChoice(ctx, state, bundle.Event, bundle.Choices[choice])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println(res.Outcome.Narration)
		for _, w := range res.Outcome.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
		fmt.Println()

		var over protocol.GameOver
		state, over = game.AdvanceState(state, res.UpdatedTeam, res.Outcome.ScoreDelta)
		if over.Over {
			if over.Victory {
				fmt.Printf("Quest complete! Final score: %d\n", state.CumulativeScore)
			} else {
				fmt.Printf("Run over: %s. Final score: %d\n", over.Reason, state.CumulativeScore)
			}
			return
		}
	}
}

// readChoice prompts until a valid 1-based pick, quit, or EOF.
func readChoice(scanner *bufio.Scanner, n int) (int, bool) {
	for {
		fmt.Printf("\npick [1-%d]> ", n)
		if !scanner.Scan() {
			return 0, false
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return 0, false
		}
		i, err := strconv.Atoi(line)
		if err == nil && i >= 1 && i <= n {
			return i - 1, true
		}
		fmt.Println("invalid choice")
	}
}

// --- API client commands ---

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdSessionsList(args []string) {
	fs := flag.NewFlagSet("sessions list", flag.ExitOnError)
	styleSlug := fs.String("style", "", "Filter by style")
	query := fs.String("query", "", "Filter by quest title substring")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	if *styleSlug != "" {
		q.Set("style", *styleSlug)
	}
	if *query != "" {
		q.Set("query", *query)
	}

	body, err := apiGet("/api/archive/sessions?" + q.Encode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var sessions []map[string]any
	json.Unmarshal(body, &sessions)
	for _, s := range sessions {
		fmt.Printf("%-38s %-10s %s\n", s["id"], s["style"], s["quest_title"])
	}
}

func cmdTracesShow(id string) {
	body, err := apiGet("/api/archive/sessions/" + id + "/traces")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	printTraces(body)
}

func cmdTracesTail(args []string) {
	fs := flag.NewFlagSet("traces tail", flag.ExitOnError)
	session := fs.String("session", "", "Filter by session")
	kind := fs.String("kind", "", "Filter by message kind")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	if *session != "" {
		q.Set("session", *session)
	}
	if *kind != "" {
		q.Set("kind", *kind)
	}

	body, err := apiGet("/api/traces?" + q.Encode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	printTraces(body)
}

func printTraces(body []byte) {
	var entries []map[string]any
	if err := json.Unmarshal(body, &entries); err != nil {
		fmt.Println(prettyJSON(body))
		return
	}
	for _, e := range entries {
		fmt.Printf("%6v %-12v %-12v -> %-12v %s\n", e["seq"], e["kind"], e["from"], e["to"], e["summary"])
	}
}

func cmdConfigValidate(path string) {
	_, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	base := envOr("WILDTALE_API_URL", "http://localhost:8080")

	req, err := http.NewRequest("GET", base+path, nil)
	if err != nil {
		return nil, err
	}
	if key := os.Getenv("WILDTALE_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	return string(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("wildtalectl - wildtale management CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  play                 Run a quest locally (--style, --seed, --provider)")
	fmt.Println("  health               Check daemon health")
	fmt.Println("  sessions list        List archived sessions (--style, --query, --limit)")
	fmt.Println("  traces show <id>     Show archived traces for a session")
	fmt.Println("  traces tail          Show recent live traces (--session, --kind, --limit)")
	fmt.Println("  config validate <p>  Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  WILDTALE_API_URL     Daemon URL (default: http://localhost:8080)")
	fmt.Println("  WILDTALE_API_KEY     API key for authentication")
	fmt.Println("  WILDTALE_PROVIDER    Provider type: openai (default) or anthropic")
	fmt.Println("  OPENAI_API_KEY       API key for OpenAI provider")
	fmt.Println("  ANTHROPIC_API_KEY    API key for Anthropic provider")
}
