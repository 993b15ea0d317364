package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
	"github.com/unclebandit/wsp-bulk-sender/internal/recipients"
	"github.com/unclebandit/wsp-bulk-sender/internal/sender"
)

type sendOptions struct {
	csvPath  string
	gateway  string
	token    string
	phoneID  string
	template string
	language string
	delay    time.Duration
	maxRPS   float64
	timeout  time.Duration
	exportTo string
}

func buildSendCmd() *cobra.Command {
	var opts sendOptions
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a template message to every row of a CSV file",
		Long: `Send a template message to every row of a CSV file.

The file needs a "numero" column; variable1..variable4 fill the template
placeholders {{1}}..{{4}}. Interrupt with Ctrl-C to stop after the
message in flight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSend(ctx, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Path to the recipients CSV file")
	cmd.Flags().StringVar(&opts.gateway, "gateway", os.Getenv("WSP_GATEWAY_URL"), "Messaging gateway URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("WSP_TOKEN"), "WhatsApp Business access token")
	cmd.Flags().StringVar(&opts.phoneID, "phone-id", os.Getenv("WSP_PHONE_ID"), "Sending phone number id")
	cmd.Flags().StringVar(&opts.template, "template", "servicio_suspendido", "Approved template name")
	cmd.Flags().StringVar(&opts.language, "language", "es", "Template language code")
	cmd.Flags().DurationVar(&opts.delay, "delay", 2*time.Second, "Pause between recipients")
	cmd.Flags().Float64Var(&opts.maxRPS, "max-rps", 0, "Upper bound on gateway requests per second (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", sender.DefaultTimeout, "Gateway request timeout")
	cmd.Flags().StringVar(&opts.exportTo, "export", "", "Write the activity log as CSV to this path when done")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runSend(ctx context.Context, out io.Writer, opts sendOptions) error {
	if opts.gateway == "" {
		return fmt.Errorf("--gateway is required")
	}
	if opts.token == "" || opts.phoneID == "" {
		return fmt.Errorf("--token and --phone-id are required")
	}
	if opts.delay < 0 {
		return fmt.Errorf("--delay must not be negative")
	}

	batch, err := loadBatch(opts.csvPath)
	if err != nil {
		return err
	}
	if batch.Dropped > 0 {
		fmt.Fprintf(out, "skipped %d rows without a number\n", batch.Dropped)
	}

	var s campaign.MessageSender = sender.NewGatewaySender(opts.gateway, sender.WithTimeout(opts.timeout))
	s = sender.RateLimited(sender.NewLimiter(opts.maxRPS), s)

	runner := campaign.NewRunner(campaign.Settings{
		Credentials:  model.Credentials{Token: opts.token, PhoneID: opts.phoneID},
		TemplateName: opts.template,
		Language:     opts.language,
	}, campaign.WithLogger(zap.NewNop()))
	runner.Subscribe(func(ev campaign.Event) {
		if ev.Entry != nil {
			fmt.Fprintf(out, "%s %s %s\n", ev.Entry.Timestamp.Format("15:04:05"), ev.Entry.Icon, ev.Entry.Message)
		}
	})

	if err := runner.Run(ctx, batch.Recipients, s, opts.delay); err != nil {
		return err
	}

	stats := runner.Stats()
	fmt.Fprintf(out, "total=%d success=%d failed=%d pending=%d\n", stats.Total, stats.Success, stats.Failed, stats.Pending)

	if opts.exportTo != "" {
		f, err := os.Create(opts.exportTo)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := campaign.WriteLog(f, runner.Snapshot().Log); err != nil {
			return err
		}
		fmt.Fprintf(out, "log written to %s\n", opts.exportTo)
	}
	return nil
}

func buildParseCmd() *cobra.Command {
	var (
		csvPath string
		rows    int
	)
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Validate a recipients CSV and preview its first rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.OutOrStdout(), csvPath, rows)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the recipients CSV file")
	cmd.Flags().IntVar(&rows, "rows", 10, "Number of rows to preview")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runParse(out io.Writer, csvPath string, rows int) error {
	batch, err := loadBatch(csvPath)
	if err != nil {
		return err
	}
	preview := batch.Preview(rows)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(preview.Headers, "\t"))
	for _, row := range preview.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d recipients, %d rows skipped\n", preview.Total, preview.Dropped)
	return nil
}

func buildSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print a sample recipients CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), recipients.SampleCSV)
			return err
		},
	}
}

func loadBatch(path string) (*recipients.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return recipients.Parse(f)
}
