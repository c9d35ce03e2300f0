package app

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"worklogbot/internal/chart"
	"worklogbot/internal/domain"
	slackbot "worklogbot/internal/integrations/slack"
	"worklogbot/internal/report"
)

// NewRootCmd creates the top-level "worklogbot" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "worklogbot",
		Short:         "Summarize Jira worklogs into chat posts, text files and charts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newNotifyCmd(app),
		newSummaryCmd(app),
		newChartCmd(app),
	)

	return root
}

type windowFlags struct {
	start string
	end   string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start-date", "", "First day of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end-date", "", "Last day of the window (YYYY-MM-DD)")
}

// resolve returns the window named by the flags, or the last complete
// reporting period when neither is set.
func (f *windowFlags) resolve(app *App) (domain.Window, error) {
	loc := app.Config.Location
	if loc == nil {
		loc = app.Now().Location()
	}
	if f.start == "" && f.end == "" {
		period := app.Config.ReportPeriod
		if period == "" {
			period = domain.DefaultReportPeriod
		}
		sched, err := domain.ParsePeriod(period)
		if err != nil {
			return domain.Window{}, err
		}
		return domain.PeriodWindow(sched, app.Now().In(loc))
	}
	if f.start == "" || f.end == "" {
		return domain.Window{}, fmt.Errorf("--start-date and --end-date must be given together")
	}
	start, err := domain.ParseDate(f.start, loc)
	if err != nil {
		return domain.Window{}, err
	}
	end, err := domain.ParseDate(f.end, loc)
	if err != nil {
		return domain.Window{}, err
	}
	if end.Before(start) {
		return domain.Window{}, fmt.Errorf("end date %s is before start date %s", f.end, f.start)
	}
	return domain.NewWindow(start, end), nil
}

func newNotifyCmd(app *App) *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Post the worklog summary to the Slack webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd, app, &flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runNotify(cmd *cobra.Command, app *App, flags *windowFlags) error {
	ctx := cmd.Context()
	window, err := flags.resolve(app)
	if err != nil {
		return err
	}
	if err := app.Config.RequireWebhook(); err != nil {
		return err
	}
	poster, err := app.NewPoster(ctx)
	if err != nil {
		return fmt.Errorf("resolving webhook: %w", err)
	}

	log.Printf("notify start window=%s top_n=%d digest=%t", window, app.Config.TopN, app.Digester != nil)
	result, err := report.Notify(ctx, app.Source, poster, app.Digester, window, app.Config.TopN)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, report.FormatNotifySummary(result))
	return nil
}

func newSummaryCmd(app *App) *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the worklog summary and write it to the report directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, app, &flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runSummary(cmd *cobra.Command, app *App, flags *windowFlags) error {
	window, err := flags.resolve(app)
	if err != nil {
		return err
	}
	sections, err := report.BuildSections(cmd.Context(), app.Source, window, app.Config.TopN)
	if err != nil {
		return err
	}
	if sections.Empty() {
		fmt.Fprintf(app.Out, "No worklogs between %s and %s.\n", window.StartDate(), window.EndDate())
		return nil
	}

	text := sections.Text()
	fmt.Fprint(app.Out, text)
	path, err := report.WriteSummaryFile(text, app.Config.ReportOutputDir, window)
	if err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	log.Printf("summary written path=%s", path)
	return nil
}

func newChartCmd(app *App) *cobra.Command {
	var flags windowFlags

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render worklog bar charts as PNG files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChart(cmd, app, &flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runChart(cmd *cobra.Command, app *App, flags *windowFlags) error {
	ctx := cmd.Context()
	window, err := flags.resolve(app)
	if err != nil {
		return err
	}
	result, err := chart.Render(ctx, app.Source, window, app.Config.ChartTopN, app.Config.ReportOutputDir, app.Out)
	if err != nil {
		return err
	}
	for _, path := range result.Files {
		fmt.Fprintln(app.Out, path)
	}
	if len(result.Files) == 0 || app.Uploader == nil {
		return nil
	}

	comment := fmt.Sprintf("Worklog charts %s", window)
	uploaded, err := slackbot.UploadFiles(ctx, app.Uploader, app.Config.ChartChannelID, comment, result.Files)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Uploaded %d charts to %s\n", uploaded, app.Config.ChartChannelID)
	return nil
}
