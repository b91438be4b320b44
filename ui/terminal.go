// Package ui renders the interactive terminal shell: the startup banner,
// the prompt, streamed assistant tokens, tool-call/result lines, and the
// slash-command menus. TerminalObserver adapts a Terminal to agent.Observer
// so the same turn procedure that drives a headless `zolt run` also drives
// this renderer.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zolt-run/zolt/config"
	"github.com/zolt-run/zolt/store"
	"github.com/zolt-run/zolt/tools"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
	White   = "\033[97m"
)

// Terminal handles all user-facing output.
type Terminal struct {
	color bool
}

// NewTerminal creates a terminal with color detection.
func NewTerminal() *Terminal {
	return &Terminal{color: isTerminal()}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (t *Terminal) c(code, text string) string {
	if !t.color {
		return text
	}
	return code + text + Reset
}

// PrintBanner prints the startup banner.
func (t *Terminal) PrintBanner(model, workDir, version string) {
	banner := `
 ____  ___   __  ______
/_  / / _ \ / / /_  __/
 / /_/___// /__ / /
/___/_/   /____//_/
`
	fmt.Print(t.c(Bold+Cyan, banner))

	versionStr := ""
	if version != "" && version != "dev" {
		versionStr = " v" + version
	}

	fmt.Println(t.c(Bold+White, "Zolt") + t.c(Gray, versionStr))
	fmt.Println()
	fmt.Println(t.c(Gray, "  Model:   ") + t.c(Cyan, model))
	fmt.Println(t.c(Gray, "  Dir:     ") + t.c(White, workDir))
	fmt.Println()
	fmt.Println(t.c(Gray, "  Type ") + t.c(Cyan, "/help") + t.c(Gray, " for commands, Esc Esc to interrupt a reply"))
	fmt.Println()
}

// Prompt returns the formatted prompt string.
func (t *Terminal) Prompt() string { return t.c(Bold+Blue, "> ") }

// PrintPrompt prints the input prompt.
func (t *Terminal) PrintPrompt() { fmt.Print(t.Prompt()) }

// PrintAssistant prints a chunk of assistant text as it streams in.
func (t *Terminal) PrintAssistant(text string) { fmt.Print(text) }

// PrintAssistantDone signals end of assistant output.
func (t *Terminal) PrintAssistantDone() { fmt.Println(); fmt.Println() }

// PrintToolCall prints a tool invocation's audit line.
func (t *Terminal) PrintToolCall(name tools.Name, payload string) {
	fmt.Println(t.c(Yellow, fmt.Sprintf("  ↳ %s", name)) + t.c(Gray, " "+truncate(payload, 100)))
}

// PrintToolResult prints a tool's result envelope, truncated to 5 lines.
func (t *Terminal) PrintToolResult(result string) {
	lines := strings.Split(result, "\n")
	if len(lines) > 5 {
		for _, line := range lines[:5] {
			fmt.Println(t.c(Gray, "    "+truncate(line, 120)))
		}
		fmt.Println(t.c(Gray, fmt.Sprintf("    ... (%d more lines)", len(lines)-5)))
		return
	}
	for _, line := range lines {
		fmt.Println(t.c(Gray, "    "+truncate(line, 120)))
	}
}

// PrintError prints an error message.
func (t *Terminal) PrintError(err error) {
	fmt.Fprintln(os.Stderr, t.c(Red, "Error: "+err.Error()))
	fmt.Println()
}

// PrintWarning prints a warning message.
func (t *Terminal) PrintWarning(msg string) {
	fmt.Println(t.c(Yellow, "Warning: "+msg))
}

// PrintHelp prints all available slash commands.
func (t *Terminal) PrintHelp() {
	fmt.Println(t.c(Bold, "Commands"))
	fmt.Println(t.c(Cyan, "  /help    ") + " Show this help message")
	fmt.Println(t.c(Cyan, "  /model   ") + " Switch provider/model")
	fmt.Println(t.c(Cyan, "  /sessions") + " List and switch conversations")
	fmt.Println(t.c(Cyan, "  /compact ") + " Compact conversation history now")
	fmt.Println(t.c(Cyan, "  /clear   ") + " Start a new conversation")
	fmt.Println(t.c(Cyan, "  /context ") + " Show context window usage")
	fmt.Println(t.c(Cyan, "  /quit    ") + " Exit Zolt")
	fmt.Println()
}

// ModelOption represents a model choice in the /model menu.
type ModelOption struct {
	ProviderID string
	ModelID    string
	Label      string
	Current    bool
}

// ModelOptionsFromCatalog flattens a catalog into a /model menu, marking the
// currently selected provider/model pair.
func ModelOptionsFromCatalog(catalog *config.Catalog, currentProvider, currentModel string) []ModelOption {
	var opts []ModelOption
	for _, p := range catalog.Providers {
		for _, m := range p.Models {
			opts = append(opts, ModelOption{
				ProviderID: p.ID,
				ModelID:    m.ID,
				Label:      fmt.Sprintf("%s (%s)", m.Name, p.Name),
				Current:    p.ID == currentProvider && m.ID == currentModel,
			})
		}
	}
	return opts
}

// PrintModelMenu prints the numbered model selection menu.
func (t *Terminal) PrintModelMenu(options []ModelOption) {
	fmt.Println(t.c(Bold, "Select a model:"))
	for i, opt := range options {
		marker := "  "
		if opt.Current {
			marker = t.c(Green, "→ ")
		}
		fmt.Printf("%s%s %s\n", marker, t.c(Cyan, fmt.Sprintf("[%d]", i+1)), opt.Label)
	}
	fmt.Println(t.c(Gray, "  Ctrl+C to cancel"))
	fmt.Println()
}

// PrintModelSwitch prints a model switch confirmation.
func (t *Terminal) PrintModelSwitch(label string) {
	fmt.Println(t.c(Green, fmt.Sprintf("Switched to %s", label)))
	fmt.Println()
}

// PrintContextUsage prints context window usage, using the spec's named
// percent_of_context_window_remaining metric (store.TokenUsage's
// baseline-reserving PercentOfContextWindowRemaining) so the display always
// agrees with the value that gates auto-compaction.
func (t *Terminal) PrintContextUsage(usage store.TokenUsage, window int) {
	fmt.Println(t.c(Bold, "Context usage"))
	if window <= 0 {
		fmt.Println(t.c(Gray, "  Context window unknown for this model."))
		fmt.Println()
		return
	}
	used := usage.TotalTokens
	pct := float64(used) / float64(window) * 100
	remaining := usage.PercentOfContextWindowRemaining(window)
	fmt.Printf("  Tokens: %s / %s (%.1f%% used)\n", formatNum(used), formatNum(window), pct)
	fmt.Printf("  Remaining: %d%%\n", remaining)
	fmt.Println()
}

func formatNum(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%d,%03d", n/1000, n%1000)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatAge(tm time.Time) string {
	d := time.Since(tm)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// SessionListItem represents a conversation entry for the /resume-style
// session switcher.
type SessionListItem struct {
	ID       string
	Updated  time.Time
	Preview  string
	MsgCount int
}

// PrintSessionList displays a numbered list of stored conversations.
func (t *Terminal) PrintSessionList(items []SessionListItem) {
	fmt.Println(t.c(Bold, "Conversations:"))
	for i, item := range items {
		preview := item.Preview
		if len(preview) > 60 {
			preview = preview[:60] + "..."
		}
		fmt.Printf("  %s  %s  %s  %s\n",
			t.c(Cyan, fmt.Sprintf("[%d]", i+1)),
			t.c(Gray, fmt.Sprintf("%-8s", formatAge(item.Updated))),
			t.c(White, fmt.Sprintf("%q", preview)),
			t.c(Gray, fmt.Sprintf("(%d messages)", item.MsgCount)),
		)
	}
	fmt.Println(t.c(Gray, "  Ctrl+C to cancel"))
	fmt.Println()
}
