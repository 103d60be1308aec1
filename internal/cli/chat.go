package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ferroclaw/ferroclaw/pkg/bus"
)

var (
	chatSession  string
	chatAgent    string
	chatProvider string
	chatVerbose  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sub := a.bus.Subscribe()
		defer sub.Close()
		go renderEvents(sub, chatVerbose)

		if err := a.sessions.Warm(ctx, chatSession, 50); err != nil {
			a.log.Warn().Err(err).Msg("Failed to warm session from archive")
		}

		fmt.Printf("ferroclaw %s - session %q (Ctrl-D to exit, /help for commands)\n", version, chatSession)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if done := a.handleCommand(line); done {
					break
				}
				continue
			}

			answer, err := a.run(ctx, chatAgent, chatSession, line, chatProvider)
			if err != nil {
				if ctx.Err() != nil {
					break
				}
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println(answer)
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "cli", "session id")
	chatCmd.Flags().StringVar(&chatAgent, "agent", "", "route to a specific agent")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "pin one provider, disabling fallback")
	chatCmd.Flags().BoolVar(&chatVerbose, "verbose", false, "show think and tool events")
	rootCmd.AddCommand(chatCmd)
}

// handleCommand executes one slash command; returns true to exit the loop.
func (a *app) handleCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`commands:
  /skills              list available skills
  /skill on <name>     activate a skill for this session
  /skill off <name>    deactivate a skill
  /agents              list configured agents
  /help                show this help
  /quit                exit`)

	case "/skills":
		active := make(map[string]struct{})
		for _, name := range a.sessions.ActiveSkills(chatSession) {
			active[name] = struct{}{}
		}
		for _, skill := range a.library.All() {
			marker := " "
			if _, on := active[skill.Name]; on {
				marker = "*"
			}
			fmt.Printf("%s %s - %s\n", marker, skill.Name, skill.Description)
		}

	case "/skill":
		if len(fields) != 3 {
			fmt.Println("usage: /skill on|off <name>")
			break
		}
		name := fields[2]
		if _, ok := a.library.Get(name); !ok {
			fmt.Printf("unknown skill: %s\n", name)
			break
		}
		switch fields[1] {
		case "on":
			a.sessions.ActivateSkill(chatSession, name)
			fmt.Printf("skill %s activated\n", name)
		case "off":
			a.sessions.DeactivateSkill(chatSession, name)
			fmt.Printf("skill %s deactivated\n", name)
		default:
			fmt.Println("usage: /skill on|off <name>")
		}

	case "/agents":
		for _, name := range a.router.Names() {
			fmt.Println(name)
		}

	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}
	return false
}

// renderEvents prints run progress from the event stream. The final answer
// is printed by the chat loop itself, so the terminal result event is shown
// only in verbose mode.
func renderEvents(sub *bus.Subscription, verbose bool) {
	for evt := range sub.Events() {
		switch evt.Kind {
		case bus.KindStatusText:
			if verbose {
				fmt.Printf("  [status] %v\n", evt.Payload["text"])
			}
		case bus.KindAgentThink:
			if verbose {
				fmt.Printf("  [think] iteration %v\n", evt.Payload["iteration"])
			}
		case bus.KindToolUse:
			fmt.Printf("  [tool] %v\n", evt.Payload["tool"])
		case bus.KindToolResult:
			if verbose {
				fmt.Printf("  [tool] %v -> %v\n", evt.Payload["tool"], evt.Payload["status"])
			}
		case bus.KindToolTimeout:
			fmt.Printf("  [tool] %v timed out after %vms\n", evt.Payload["tool"], evt.Payload["elapsed_ms"])
		case bus.KindMemoryTruncate:
			if verbose {
				fmt.Printf("  [memory] dropped %v turns\n", evt.Payload["turns_dropped"])
			}
		case bus.KindResult:
			if verbose {
				fmt.Println("  [done]")
			}
		case bus.KindError:
			fmt.Printf("  [error] %v: %v\n", evt.Payload["kind"], evt.Payload["message"])
		}
	}
}
