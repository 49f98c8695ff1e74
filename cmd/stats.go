package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/geoquiz/internal/session"
	"github.com/abhisek/geoquiz/internal/store"
	"github.com/abhisek/geoquiz/internal/ui/components"
	"github.com/abhisek/geoquiz/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archived session statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().Int("recent", 10, "Number of recent sessions to list")
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	recent, _ := cmd.Flags().GetInt("recent")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.SessionRepo().Counts(ctx)
	if err != nil {
		return err
	}
	records, err := st.SessionRepo().List(ctx, store.QueryOpts{Limit: recent})
	if err != nil {
		return err
	}

	names := make(map[int]string)
	cats, err := st.CatalogRepo().ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	categoryName := func(id int) string {
		if n, ok := names[id]; ok {
			return n
		}
		return "#" + strconv.Itoa(id)
	}

	out := cmd.OutOrStdout()
	if counts.Total == 0 {
		fmt.Fprintln(out, theme.Hint.Render("No sessions recorded yet."))
		return nil
	}

	var b strings.Builder
	fmt.Fprintln(&b, theme.Title.Render("Sessions"))
	fmt.Fprintf(&b, "%s %d  %s %d  %s %d\n",
		theme.Label.Render("total"), counts.Total,
		theme.Label.Render("completed"), counts.Completed,
		theme.Label.Render("partial"), counts.Partial)
	fmt.Fprintf(&b, "%s %.1f\n", theme.Label.Render("avg questions"), counts.AvgQuestions)

	if len(counts.ByLeadingCategory) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, theme.Title.Render("Leading category"))
		labelWidth := 0
		for id := range counts.ByLeadingCategory {
			labelWidth = max(labelWidth, len(categoryName(id)))
		}
		for _, id := range slices.Sorted(maps.Keys(counts.ByLeadingCategory)) {
			share := float64(counts.ByLeadingCategory[id]) / float64(counts.Total)
			fmt.Fprintln(&b, components.NewWeightBar(categoryName(id), labelWidth, share, 32).View())
		}
	}
	fmt.Fprintln(out, theme.Card.Render(strings.TrimRight(b.String(), "\n")))

	if len(records) == 0 {
		return nil
	}
	fmt.Fprintln(out, theme.Title.Render("Recent"))
	for _, r := range records {
		leading := "-"
		if r.LeadingCategory != nil {
			leading = categoryName(*r.LeadingCategory)
		}
		status := theme.Good.Render(r.Status.String())
		if r.Status != session.StatusCompleted {
			status = theme.Bad.Render(r.Status.String())
		}
		fmt.Fprintf(out, "  %s  %-9s  %2d questions  %-12s %s\n",
			theme.Hint.Render(r.EndedAt.Local().Format(time.DateTime)),
			status, r.QuestionsCount, leading,
			theme.Hint.Render(r.Duration.Round(time.Second).String()))
	}
	return nil
}
