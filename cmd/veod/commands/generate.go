package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamtide/veod/gen"
	"github.com/dreamtide/veod/job"
	"github.com/dreamtide/veod/veo"
)

var (
	generateCategory string
	generateAspect   string
	generateDuration int
	generateAudio    bool
	generateEnhance  bool
)

// GenerateCmd submits one generation and follows it to a terminal state.
var GenerateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Submit a video generation and wait for the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		if err := rt.bootstrap(ctx); err != nil {
			return err
		}

		j, err := rt.service.Submit(ctx, gen.SubmitRequest{
			Prompt:          strings.Join(args, " "),
			Category:        generateCategory,
			AspectRatio:     veo.AspectRatio(generateAspect),
			DurationSeconds: generateDuration,
			GenerateAudio:   generateAudio,
			EnhancePrompt:   generateEnhance,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Submitted job %s (operation %s)\n", j.ID, j.OperationID)

		final, err := followJob(ctx, rt, j.ID)
		if err != nil {
			return err
		}

		switch final.Status {
		case job.StatusCompleted:
			fmt.Printf("Completed: %s\n", final.ResultRef)
			return nil
		case job.StatusCancelled:
			fmt.Println("Cancelled")
			return nil
		default:
			return fmt.Errorf("generation failed: %s", final.FailureReason)
		}
	},
}

// followJob prints progress until the job reaches a terminal state.
func followJob(ctx context.Context, rt *runtime, id string) (*job.Job, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastShown := -1
	for {
		j, err := rt.store.Get(id)
		if err != nil {
			return nil, err
		}
		if j.Status.IsTerminal() {
			return j, nil
		}

		if pct := int(j.Progress * 100); pct != lastShown {
			fmt.Printf("  %s %d%%\n", j.Status, pct)
			lastShown = pct
		}

		select {
		case <-ctx.Done():
			// Leave the job running server-side; a later `veod serve`
			// resumes the loop
			return rt.store.Get(id)
		case <-ticker.C:
		}
	}
}

func init() {
	GenerateCmd.Flags().StringVarP(&generateCategory, "category", "c", "", "Free-form job category label")
	GenerateCmd.Flags().StringVar(&generateAspect, "aspect", string(veo.AspectRatioLandscape), `Aspect ratio ("16:9" or "9:16")`)
	GenerateCmd.Flags().IntVarP(&generateDuration, "duration", "d", 8, "Video duration in seconds")
	GenerateCmd.Flags().BoolVar(&generateAudio, "audio", true, "Generate audio")
	GenerateCmd.Flags().BoolVar(&generateEnhance, "enhance", true, "Let the backend enhance the prompt")
}
