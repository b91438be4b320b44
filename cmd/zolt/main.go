// Command zolt is a terminal AI coding assistant: an interactive REPL by
// default, or a single non-interactive turn via `zolt run`.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zolt-run/zolt/agent"
	"github.com/zolt-run/zolt/config"
	"github.com/zolt-run/zolt/interrupt"
	"github.com/zolt-run/zolt/shellsession"
	"github.com/zolt-run/zolt/skills"
	"github.com/zolt-run/zolt/store"
	"github.com/zolt-run/zolt/tools"
	"github.com/zolt-run/zolt/ui"
)

var version = "dev"

func getVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// env bundles everything a command needs, assembled once per invocation.
type env struct {
	workDir   string
	appState  *store.AppState
	statePath string
	catalog   *config.Catalog
	ag        *agent.Agent
	term      *ui.Terminal
	logger    zerolog.Logger
}

func buildEnv(sessionID string, verbose bool) (*env, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	config.LoadDotEnv(workDir)
	config.LoadCredentialsFile()

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	dataDir, err := config.DataDir()
	if err != nil {
		return nil, err
	}
	catalog := config.LoadCatalog(dataDir)

	statePath, err := config.StatePath()
	if err != nil {
		return nil, err
	}
	appState, err := store.LoadOrCreate(statePath, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if sessionID != "" {
		if appState.ByID(sessionID) == nil {
			return nil, fmt.Errorf("conversation %q not found", sessionID)
		}
		appState.CurrentConversationID = sessionID
	}

	if appState.SelectedProviderID == "" {
		appState.SelectedProviderID = config.DefaultProviderID
	}
	if appState.SelectedModelID == "" {
		appState.SelectedModelID = catalog.DefaultModelID(appState.SelectedProviderID)
	}

	skillCatalog, err := skills.Discover(
		[]string{filepath.Join(dataDir, "skills")},
		[]string{filepath.Join(workDir, ".zolt", "skills")},
	)
	if err != nil {
		logger.Warn().Err(err).Msg("skill discovery failed")
		skillCatalog = &skills.Catalog{}
	}

	registry := tools.NewRegistry(workDir, shellsession.NewManager(), skillCatalog, visionConfigFromEnv())

	client, clientErr := config.BuildClient(catalog, appState.SelectedProviderID, appState.SelectedModelID)
	ag := agent.New(client, registry, skillCatalog, workDir, true, func() int64 { return time.Now().UnixMilli() })
	ag.Logger = logger
	ag.CredentialErr = clientErr

	return &env{
		workDir:   workDir,
		appState:  appState,
		statePath: statePath,
		catalog:   catalog,
		ag:        ag,
		term:      ui.NewTerminal(),
		logger:    logger,
	}, nil
}

func visionConfigFromEnv() *tools.VisionConfig {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil
	}
	candidates := []string{"gpt-4o-mini"}
	if m := os.Getenv("VISION_MODEL"); m != "" {
		candidates = []string{m}
	}
	return &tools.VisionConfig{
		APIKey:          key,
		BaseURL:         "https://api.openai.com/v1",
		ModelCandidates: candidates,
	}
}

func (e *env) save() error {
	return store.Save(e.statePath, e.appState)
}

func main() {
	var sessionID string
	var verbose bool
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "zolt",
		Short: "An AI coding assistant for the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("zolt %s\n", getVersion())
				return nil
			}
			e, err := buildEnv(sessionID, verbose)
			if err != nil {
				return err
			}
			return runInteractive(e)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "select a conversation by id")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "print the zolt version and exit")

	runCmd := &cobra.Command{
		Use:   "run \"<prompt>\"",
		Short: "Run a single non-interactive turn and print the final answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				fmt.Fprintln(os.Stderr, "missing prompt")
				os.Exit(1)
			}
			e, err := buildEnv(sessionID, verbose)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			os.Exit(runHeadless(e, prompt))
			return nil
		},
	}
	rootCmd.AddCommand(runCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the zolt version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("zolt %s\n", getVersion())
		},
	}
	rootCmd.AddCommand(versionCmd)

	helpCmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Run: func(cmd *cobra.Command, args []string) {
			target := rootCmd
			if len(args) > 0 {
				if found, _, err := rootCmd.Find(args); err == nil {
					target = found
				}
			}
			_ = target.Help()
		},
	}
	rootCmd.AddCommand(helpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runHeadless implements `zolt run`: one turn, final text to stdout, exit
// code per spec §6 (0 success, 1 missing credential, 2 provider failure).
func runHeadless(e *env, prompt string) int {
	ctx := context.Background()
	conv := e.appState.Current()
	if conv == nil {
		fresh := store.NewConversation(time.Now().UnixMilli())
		e.appState.Conversations = append(e.appState.Conversations, fresh)
		e.appState.CurrentConversationID = fresh.ID
		conv = e.appState.Current()
	}

	if e.ag.CredentialErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", e.ag.CredentialErr)
		return 1
	}

	final, err := e.ag.Turn(ctx, conv, prompt, agent.NoopObserver{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	if saveErr := e.save(); saveErr != nil {
		e.logger.Warn().Err(saveErr).Msg("state save failed")
	}

	fmt.Println(final)
	if strings.HasPrefix(final, "[local] Request failed") {
		return 2
	}
	return 0
}

// runInteractive drives the REPL: banner, prompt loop, slash commands, and
// one agent.Turn per plain-text line, rendered live via ui.TerminalObserver.
func runInteractive(e *env) error {
	conv := e.appState.Current()
	if conv == nil {
		fresh := store.NewConversation(time.Now().UnixMilli())
		e.appState.Conversations = append(e.appState.Conversations, fresh)
		e.appState.CurrentConversationID = fresh.ID
		conv = e.appState.Current()
	}

	e.term.PrintBanner(e.appState.SelectedModelID, e.workDir, getVersion())
	if e.ag.CredentialErr != nil {
		e.term.PrintWarning(e.ag.CredentialErr.Error())
	}

	var ctl *interrupt.Controller
	isTTY := isStdinTTY()
	if isTTY {
		ctl = interrupt.New(os.Stdin)
		e.ag.Interrupt = ctl
	}

	observer := &ui.TerminalObserver{Term: e.term}
	ctx := context.Background()

	for {
		e.term.PrintPrompt()
		line, err := readLine(ctl, isTTY)
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch line {
		case "/quit":
			if err := e.save(); err != nil {
				e.term.PrintWarning("state save failed: " + err.Error())
			}
			return nil
		case "/help":
			e.term.PrintHelp()
			continue
		case "/clear":
			fresh := store.NewConversation(time.Now().UnixMilli())
			e.appState.Conversations = append(e.appState.Conversations, fresh)
			e.appState.CurrentConversationID = fresh.ID
			conv = e.appState.Current()
			e.term.PrintModelSwitch("new conversation")
			continue
		case "/compact":
			changed, err := agent.Compact(ctx, e.ag.Client, conv, true, time.Now().UnixMilli())
			if err != nil {
				e.term.PrintError(err)
			} else if !changed {
				e.term.PrintWarning("not enough history to compact yet")
			} else {
				e.term.PrintModelSwitch("conversation compacted")
			}
			continue
		case "/context":
			window := conv.ModelContextWindow
			if window == 0 {
				window = e.ag.Client.ContextWindow()
			}
			e.term.PrintContextUsage(conv.LastTokenUsage, window)
			continue
		case "/model":
			handleModelSwitch(e, ctl, isTTY)
			continue
		case "/sessions":
			conv = handleSessionSwitch(e, ctl, isTTY)
			continue
		}

		withRaw(ctl, isTTY, func() {
			if _, err := e.ag.Turn(ctx, conv, line, observer); err != nil {
				e.term.PrintError(err)
			}
		})
		if saveErr := e.save(); saveErr != nil {
			e.term.PrintWarning("state save failed: " + saveErr.Error())
		}
	}
	return e.save()
}

var stdinReader = bufio.NewReader(os.Stdin)

// readLine reads one line of interactive input, sharing the Controller's
// stdin-reader goroutine when one is active (see Controller.ReadLine) so a
// second concurrent reader never races it for bytes. When stdin isn't a
// TTY (piped input, no Controller), a plain buffered reader is used instead.
func readLine(ctl *interrupt.Controller, isTTY bool) (string, error) {
	if ctl == nil {
		line, err := stdinReader.ReadString('\n')
		return strings.TrimRight(line, "\r\n"), err
	}
	return ctl.ReadLine()
}

// withRaw puts stdin into cbreak mode for the duration of fn, so the
// Controller's poll can see an Esc the instant it arrives instead of after
// the next Enter, then restores canonical mode for the next prompt.
func withRaw(ctl *interrupt.Controller, isTTY bool, fn func()) {
	if !isTTY || ctl == nil {
		fn()
		return
	}
	rm, err := ui.NewRawMode()
	if err != nil {
		fn()
		return
	}
	_ = rm.Enable()
	fn()
	_ = rm.Disable()
}

func isStdinTTY() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func handleModelSwitch(e *env, ctl *interrupt.Controller, isTTY bool) {
	options := ui.ModelOptionsFromCatalog(e.catalog, e.appState.SelectedProviderID, e.appState.SelectedModelID)
	e.term.PrintModelMenu(options)
	e.term.PrintPrompt()
	line, err := readLine(ctl, isTTY)
	if err != nil {
		return
	}
	idx := -1
	fmt.Sscanf(strings.TrimSpace(line), "%d", &idx)
	if idx < 1 || idx > len(options) {
		e.term.PrintWarning("no change")
		return
	}
	chosen := options[idx-1]

	client, err := config.BuildClient(e.catalog, chosen.ProviderID, chosen.ModelID)
	if err != nil {
		e.term.PrintError(err)
		return
	}
	e.appState.SelectedProviderID = chosen.ProviderID
	e.appState.SelectedModelID = chosen.ModelID
	e.ag.Client = client
	e.ag.CredentialErr = nil
	e.term.PrintModelSwitch(chosen.Label)
}

// handleSessionSwitch lists stored conversations and returns the one the
// user picks (or the current conversation, unchanged, on no selection).
func handleSessionSwitch(e *env, ctl *interrupt.Controller, isTTY bool) *store.Conversation {
	items := make([]ui.SessionListItem, len(e.appState.Conversations))
	for i, c := range e.appState.Conversations {
		items[i] = ui.SessionListItem{
			ID:       c.ID,
			Updated:  time.UnixMilli(c.UpdatedMs),
			Preview:  c.Title,
			MsgCount: len(c.Messages),
		}
	}
	e.term.PrintSessionList(items)
	e.term.PrintPrompt()
	line, err := readLine(ctl, isTTY)
	if err != nil {
		return e.appState.Current()
	}
	idx := -1
	fmt.Sscanf(strings.TrimSpace(line), "%d", &idx)
	if idx < 1 || idx > len(e.appState.Conversations) {
		return e.appState.Current()
	}
	e.appState.CurrentConversationID = e.appState.Conversations[idx-1].ID
	return e.appState.Current()
}
