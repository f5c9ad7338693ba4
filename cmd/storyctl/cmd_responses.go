package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qissati/internal/domain"
)

func (c *cli) answerCmd() *cobra.Command {
	var (
		storyID string
		answer  domain.Answer
	)
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Submit a student answer to today's story or --story",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if storyID != "" {
				if _, ok := c.engine.Store.Story(storyID); !ok {
					return fmt.Errorf("story %q: %w", storyID, domain.ErrStoryNotFound)
				}
			}
			resp, err := c.engine.Store.SubmitAnswerFor(c.ctx, storyID, answer)
			if err != nil {
				return err
			}
			title := resp.StoryTitle
			if title == "" {
				title = "(no story)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "answer %s recorded for %s\n", resp.ID, title)
			return nil
		},
	}
	cmd.Flags().StringVar(&storyID, "story", "", "Story id; defaults to the story of the day")
	cmd.Flags().StringVar(&answer.Name, "name", "", "Student name")
	cmd.Flags().StringVar(&answer.Class, "class", "", "Class name")
	cmd.Flags().StringVar(&answer.Text, "text", "", "The answer")
	return cmd
}

func (c *cli) responsesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "responses",
		Short: "Read and delete student responses (admin)",
	}

	var title string
	list := &cobra.Command{
		Use:   "list",
		Short: "List responses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireAdmin(); err != nil {
				return err
			}
			responses := c.engine.Store.Responses()
			if title != "" {
				responses = c.engine.Store.ResponsesFor(title)
			}
			if len(responses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no responses")
				return nil
			}
			for _, r := range responses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s (%s) on %q: %s\n",
					r.ID, r.Timestamp, r.StudentName, r.ClassName, r.StoryTitle, r.Answer)
			}
			return nil
		},
	}
	list.Flags().StringVar(&title, "story-title", "", "Only responses to this story title")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireAdmin(); err != nil {
				return err
			}
			if err := c.engine.Store.DeleteResponse(c.ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted response %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
