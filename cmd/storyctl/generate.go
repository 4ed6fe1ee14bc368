package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/domain/entity"
	einoobs "dreamteller-api/internal/observability/eino"
)

type generateOptions struct {
	prompt    entity.StoryPrompt
	filename  string
	noArchive bool
	asJSON    bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full generation pipeline and archive the result",
		Long: `Runs sketch, character, scenes, illustration and title stages,
printing progress to stderr. The finished story is written to the archive
directory unless --no-archive is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.prompt.Idea, "idea", "", "story idea")
	f.StringVar(&opts.prompt.Genre, "genre", "", "genre, e.g. Fantasy")
	f.StringVar(&opts.prompt.Tone, "tone", "", "tone, e.g. Whimsical")
	f.StringVar(&opts.prompt.MainCharacter, "character", "", "main character description")
	f.StringVar(&opts.prompt.Setting, "setting", "", "setting description")
	f.StringVar(&opts.prompt.ArtStyle, "art-style", "", "illustration art style")
	f.IntVar(&opts.prompt.NumScenes, "scenes", 0, "number of scenes (0 uses the default)")
	f.StringVar(&opts.filename, "output", "", "archive filename (defaults to the story title)")
	f.BoolVar(&opts.noArchive, "no-archive", false, "do not write an archive")
	f.BoolVar(&opts.asJSON, "json", false, "print the story as JSON")
	_ = cmd.MarkFlagRequired("idea")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	core, err := root.core()
	if err != nil {
		return err
	}
	einoobs.Init()

	ctx := cmd.Context()
	progress := cmd.ErrOrStderr()
	observer := story.ObserverFuncs{
		Status: func(message string) {
			fmt.Fprintf(progress, "  %s\n", message)
		},
		ImageStatus: func(index int, loading bool) {
			state := "done"
			if loading {
				state = "rendering"
			}
			fmt.Fprintf(progress, "  scene %d image %s\n", index+1, state)
		},
		Stage: func(stage entity.Stage, pct int) {
			fmt.Fprintf(progress, "[%3d%%] %s\n", pct, stage)
		},
	}

	s, err := core.Stories.Generate(ctx, opts.prompt, story.WithObserver(observer))
	if err != nil {
		if stage, ok := story.FailedStage(err); ok {
			return fmt.Errorf("generation failed at %s: %s", stage, story.UserMessage(err))
		}
		return fmt.Errorf("generation failed: %s", story.UserMessage(err))
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		if err := writeJSON(out, s); err != nil {
			return err
		}
	} else {
		printStory(out, s)
	}

	if opts.noArchive {
		return nil
	}
	name, err := core.Library.Save(ctx, s, opts.filename)
	if err != nil {
		return fmt.Errorf("archive story: %w", err)
	}
	fmt.Fprintf(progress, "archived to %s\n", name)
	return nil
}

func printStory(w io.Writer, s *entity.Story) {
	fmt.Fprintf(w, "%s\n\n", s.Title)
	for i, sc := range s.Scenes {
		fmt.Fprintf(w, "Scene %d\n%s\n", i+1, sc.Text)
		if sc.HasImage() && len(sc.ImageURL) < 512 {
			fmt.Fprintf(w, "Image: %s\n", sc.ImageURL)
		}
		fmt.Fprintln(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
