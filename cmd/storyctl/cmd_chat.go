package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"qissati/internal/domain"
	"qissati/internal/usecase/chat"
)

func (c *cli) chatCmd() *cobra.Command {
	var storyID string
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask the assistant about a story",
		Long: `Ask the story assistant a question. With no arguments, chat reads one
question per line from stdin until EOF.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if storyID != "" {
				if _, ok := c.engine.Store.Story(storyID); !ok {
					return fmt.Errorf("story %q: %w", storyID, domain.ErrStoryNotFound)
				}
			}
			m := chat.New(chat.Config{
				Backend: c.engine.Chat,
				Source:  func() (domain.Story, bool) { return c.engine.Store.DisplayedFor(storyID) },
				Logger:  c.engine.Logger,
				Timeout: c.engine.Config.Chat.Timeout,
			})
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				return c.ask(cmd, m, strings.Join(args, " "))
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprint(out, "> ")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line != "" {
					if err := c.ask(cmd, m, line); err != nil {
						return err
					}
				}
				fmt.Fprint(out, "> ")
			}
			fmt.Fprintln(out)
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&storyID, "story", "", "Story id; defaults to the story of the day")
	return cmd
}

func (c *cli) ask(cmd *cobra.Command, m *chat.Manager, question string) error {
	reply, err := m.Send(c.ctx, question)
	switch {
	case err == nil:
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
		return nil
	case errors.Is(err, domain.ErrEmptyMessage):
		return nil
	default:
		return err
	}
}
