package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"attorney-splits/internal/config"
	"attorney-splits/internal/ingest"
	"attorney-splits/internal/splits/application"
	splits "attorney-splits/internal/splits/domain"
	"attorney-splits/internal/splits/interfaces"
)

type options struct {
	paymentsPath string
	feesPath     string
	format       string
	outDir       string
	firmID       string
	label        string
	originator   string
	resolve      bool
	summary      bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	policy, err := cfg.AttributionPolicy()
	if err != nil {
		fmt.Fprintln(os.Stderr, "policy:", err)
		os.Exit(2)
	}
	renderer, err := interfaces.RendererFor(opts.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	payments, err := readRows(opts.paymentsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "payments:", err)
		os.Exit(2)
	}
	fees, err := readRows(opts.feesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fees:", err)
		os.Exit(2)
	}

	splitOpts := cfg.SplitOptions()
	if opts.originator != "" {
		splitOpts.OriginatorName = opts.originator
	}
	if opts.resolve {
		splitOpts.ResolveOriginators = true
	}

	pipeline := application.NewPipeline(policy,
		application.WithNormalizer(application.NewNormalizer(cfg.NormalizerOptions()...)),
		application.WithMatcher(cfg.Matcher()),
	)
	result, err := pipeline.Run(application.BatchInput{
		FirmID:      opts.firmID,
		GeneratedAt: time.Now().UTC(),
		Payments:    payments,
		Fees:        fees,
		Options:     splitOpts,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipeline:", splits.MessageOf(err))
		os.Exit(1)
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w.String())
	}

	payload, err := renderer.Render(result.Report)
	if err != nil {
		fmt.Fprintln(os.Stderr, "render:", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}
	outPath := filepath.Join(opts.outDir, fmt.Sprintf("attorney-splits-%s.%s", opts.label, renderer.Format()))
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}

	fmt.Printf("matters=%d dropped=%d malformed=%d -> %s\n",
		result.Report.MatterCount(),
		result.Dropped(),
		result.Payments.MalformedAmounts+result.Fees.MalformedAmounts,
		outPath,
	)
	if opts.summary {
		printSummary(result.Report)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.StringVar(&opts.paymentsPath, "payments", "", "payments CSV or XLSX file")
	flag.StringVar(&opts.feesPath, "fees", "", "fees CSV or XLSX file")
	flag.StringVar(&opts.format, "format", "xlsx", "output format: xlsx, pdf or json")
	flag.StringVar(&opts.outDir, "out", "./out", "output directory")
	flag.StringVar(&opts.firmID, "firm", "default", "firm id recorded in the report")
	flag.StringVar(&opts.label, "label", "", "report label, defaults to the current month")
	flag.StringVar(&opts.originator, "originator", "", "originator name for the placeholder share")
	flag.BoolVar(&opts.resolve, "resolve-originators", false, "credit the originator recorded on each bill")
	flag.BoolVar(&opts.summary, "summary", true, "print per-attorney totals")
	flag.Parse()

	if opts.paymentsPath == "" || opts.feesPath == "" {
		return opts, errors.New("both -payments and -fees are required")
	}
	if opts.label == "" {
		opts.label = time.Now().UTC().Format("2006-01")
	}
	opts.label = strings.Join(strings.Fields(opts.label), "-")
	return opts, nil
}

func readRows(path string) ([]splits.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ingest.Decode(path, data)
}

func printSummary(report *splits.SplitReportModel) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Attorney\tOriginator\tWorking\tTotal\tMatters\t")
	for _, t := range report.ByAttorney() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t\n",
			t.Name,
			splits.FormatMoney(t.OriginatorAmount),
			splits.FormatMoney(t.WorkingAmount),
			splits.FormatMoney(t.Total),
			t.MatterCount,
		)
	}
	fmt.Fprintf(w, "Grand Total\t\t\t%s\t\t\n", splits.FormatMoney(report.GrandTotal()))
	_ = w.Flush()
}
