package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	askSession  string
	askAgent    string
	askProvider string
)

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Run a single request and print the answer",
	Args:  cobra.MinimumNArgs(1),
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

		if err := a.sessions.Warm(ctx, askSession, 50); err != nil {
			a.log.Warn().Err(err).Msg("Failed to warm session from archive")
		}

		answer, err := a.run(ctx, askAgent, askSession, strings.Join(args, " "), askProvider)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "cli", "session id")
	askCmd.Flags().StringVar(&askAgent, "agent", "", "route to a specific agent")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "pin one provider, disabling fallback")
	rootCmd.AddCommand(askCmd)
}
