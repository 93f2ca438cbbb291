package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/flipdeck/internal/collection"
	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/storage"
	"github.com/conorfennell/flipdeck/internal/web"
)

func newProgressCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Print learning progress and recent quiz results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := storage.Open(cfg.DB.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			coll, err := db.GetCollections()
			if err != nil {
				return err
			}
			cards := collection.New()
			cards.Load(coll)

			summary, err := db.QuizAttemptSummary(web.ClampRange(days), time.Now())
			if err != nil {
				return err
			}
			return printProgress(cmd.OutOrStdout(), cards.Stats(), summary)
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "days of quiz history to show (7-30)")
	return cmd
}

func printProgress(w io.Writer, stats collection.Stats, summary []domain.DailyQuizSummary) error {
	fmt.Fprintf(w, "Flashcards: %d total, %d learned (%d%%), %d to learn (%d%%)\n\n",
		stats.Total, stats.Learned, stats.LearnedPercentage, stats.Unlearned, stats.UnlearnedPercentage)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tQUIZZES\tQUESTIONS\tCORRECT\tACCURACY")
	for _, day := range summary {
		accuracy := "-"
		if day.TotalQuestions > 0 {
			accuracy = fmt.Sprintf("%d%%", day.CorrectAnswers*100/day.TotalQuestions)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
			day.Date, day.AttemptCount, day.TotalQuestions, day.CorrectAnswers, accuracy)
	}
	return tw.Flush()
}
