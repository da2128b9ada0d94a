package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/chat"
)

func newChatCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal as a user",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close()) }()

			engine, err := a.engine()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printHeader(cmd, fmt.Sprintf("Chatting as %s (empty line or /quit to exit)", userID))

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, color.GreenString("you> "))
				if !scanner.Scan() {
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" || text == "/quit" {
					return nil
				}

				reply, err := engine.Handle(cmd.Context(), userID, text)
				switch {
				case errors.Is(err, chat.ErrAccessDenied):
					return err
				case err != nil && reply == "":
					fmt.Fprintln(out, color.RedString("error: %v", err))
					continue
				case err != nil:
					fmt.Fprintln(out, color.YellowString("warning: %v", err))
				}
				fmt.Fprintf(out, "%s %s\n", color.CyanString("nim>"), reply)
			}
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user ID whose memory to use")
	return cmd
}
