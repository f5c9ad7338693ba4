package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"qissati/internal/domain"
	"qissati/internal/media"
)

func (c *cli) storiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stories",
		Short: "List and manage stories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stories := c.engine.Store.Stories()
			if len(stories) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no stories")
				return nil
			}
			for _, st := range stories {
				fmt.Fprintf(cmd.OutOrStdout(), "%-15s %s  %-7s %s\n", st.ID, st.Date, st.Status, st.Title)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := c.engine.Store.Story(args[0])
			if !ok {
				return fmt.Errorf("story %q: %w", args[0], domain.ErrStoryNotFound)
			}
			printStory(cmd.OutOrStdout(), st)
			return nil
		},
	}

	var fields domain.StoryFields
	var videoType bool
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a story (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireAdmin(); err != nil {
				return err
			}
			fields.Type = storyType(videoType)
			id, err := c.engine.Store.AddStory(c.ctx, fields)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added story %s\n", id)
			return nil
		},
	}
	bindStoryFlags(add, &fields, &videoType)

	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the fields of a story (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireAdmin(); err != nil {
				return err
			}
			fields.Type = storyType(videoType)
			if err := c.engine.Store.EditStory(c.ctx, args[0], fields); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated story %s\n", args[0])
			return nil
		},
	}
	bindStoryFlags(edit, &fields, &videoType)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a story (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireAdmin(); err != nil {
				return err
			}
			if err := c.engine.Store.DeleteStory(c.ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted story %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, add, edit, del)
	return cmd
}

func (c *cli) todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Print the story of the day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, ok := c.engine.Store.Today()
			if !ok {
				return domain.ErrNoStory
			}
			printStory(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func bindStoryFlags(cmd *cobra.Command, f *domain.StoryFields, video *bool) {
	cmd.Flags().StringVar(&f.Title, "title", "", "Story title (required)")
	cmd.Flags().StringVar(&f.Content, "content", "", "Story text or video summary")
	cmd.Flags().StringVar(&f.Question, "question", "", "Question of the day")
	cmd.Flags().StringVar(&f.Date, "date", "", "Publication date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.VideoURL, "video-url", "", "YouTube link for video stories")
	cmd.Flags().BoolVar(video, "video", false, "Mark the story as a video")
}

func storyType(video bool) domain.StoryType {
	if video {
		return domain.StoryVideo
	}
	return domain.StoryText
}

func printStory(w io.Writer, st domain.Story) {
	writeLines(w,
		fmt.Sprintf("%s  (%s, %s)", st.Title, st.Date, st.Status),
		strings.Repeat("-", 40),
	)
	if st.IsVideo() {
		if id, ok := media.YouTubeID(st.VideoURL); ok {
			fmt.Fprintf(w, "video: %s\n", media.WatchURL(id))
		} else if st.VideoURL != "" {
			fmt.Fprintf(w, "video: %s\n", st.VideoURL)
		}
	}
	if st.Content != "" {
		fmt.Fprintln(w, st.Content)
	}
	if st.Question != "" {
		fmt.Fprintf(w, "\n? %s\n", st.Question)
	}
}
