package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/hl7"
	"github.com/openlis/astmsim/lis1"
	"github.com/openlis/astmsim/simulator"
	"github.com/openlis/astmsim/template"
)

var (
	flagPushTarget     string
	flagPushCount      int
	flagPushInterval   time.Duration
	flagPushContinuous bool
	flagPushProtocol   string
	flagPushSeed       int64
	flagPushInsecure   bool
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Generate results and push them to a bridge",
	Long: `Push acts as the transmission initiator: it generates result messages
for the configured analyzer type and delivers them to the target. The
astm protocol transmits over the LIS1-A link, hl7 sends ORU^R01 over
MLLP, and http posts the message text to an OpenELIS bridge URL.`,
	RunE: runPush,
}

func init() {
	f := pushCmd.Flags()
	f.StringVar(&flagPushTarget, "target", "", "delivery target: host:port for astm and hl7, base URL for http")
	f.IntVarP(&flagPushCount, "count", "c", 1, "number of messages to push")
	f.DurationVarP(&flagPushInterval, "interval", "i", time.Second, "pause between pushes")
	f.BoolVarP(&flagPushContinuous, "continuous", "C", false, "push until interrupted")
	f.StringVar(&flagPushProtocol, "protocol", "astm", "delivery protocol: astm, hl7, or http")
	f.Int64Var(&flagPushSeed, "seed", 0, "random seed for reproducible values (0 seeds from time)")
	f.BoolVar(&flagPushInsecure, "insecure", false, "skip TLS certificate verification for http targets")
	_ = pushCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	catalog, err := template.Load(s.TemplatesDir)
	if err != nil {
		return err
	}
	tpl := catalog.Get(s.AnalyzerType)

	pusher, err := buildPusher(s)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := &simulator.PushRun{
		Generator:    generator.New(tpl, generatorOptions(flagPushSeed)...),
		Pusher:       pusher,
		AnalyzerType: tpl.Type(),
		Count:        flagPushCount,
		Interval:     flagPushInterval,
		Continuous:   flagPushContinuous,
	}

	summary := run.Run(ctx)

	fmt.Fprintf(cmd.OutOrStdout(), "pushed %d message(s): %d delivered, %d failed\n",
		summary.Total, summary.Successful, summary.Failed)
	for _, res := range summary.Results {
		if !res.Success {
			fmt.Fprintf(cmd.OutOrStdout(), "  message %d: %s\n", res.MessageNumber, res.Error)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d pushes failed", summary.Failed, summary.Total)
	}

	return nil
}

func buildPusher(s *settings) (simulator.Pusher, error) {
	switch strings.ToLower(flagPushProtocol) {
	case "astm":
		cfg, err := lis1.NewSessionConfig(lis1.WithResponseDelay(s.responseDelay()))
		if err != nil {
			return nil, err
		}

		return simulator.NewLinkPusher(flagPushTarget, cfg)
	case "hl7":
		return simulator.NewMLLPPusher(hl7.NewClient(flagPushTarget)), nil
	case "http":
		var opts []simulator.BridgeOption
		if flagPushInsecure {
			opts = append(opts, simulator.WithInsecureTLS())
		}

		return simulator.NewBridgePusher(simulator.NewBridgeClient(flagPushTarget, opts...)), nil
	default:
		return nil, fmt.Errorf("unknown protocol %q (use astm, hl7, or http)", flagPushProtocol)
	}
}
