package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/generator"
	"github.com/openlis/astmsim/lis1"
	"github.com/openlis/astmsim/logger"
	"github.com/openlis/astmsim/serialport"
	"github.com/openlis/astmsim/simulator"
	"github.com/openlis/astmsim/template"
)

const shutdownGrace = 5 * time.Second

var (
	flagServeAPIPort     int
	flagServeForward     string
	flagServeInsecure    bool
	flagServeMaxSessions int
	flagServeSerial      string
	flagServeSerialMode  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analyzer simulator",
	Long: `Serve listens for bridge connections on the link port, answers test
menu queries from the analyzer template, and receives result
transmissions. With --forward, every received message is posted to the
OpenELIS bridge endpoint. With --api-port, an HTTP control surface
exposes health, templates, push triggering, and metrics. With --serial,
the simulator runs a single session on a serial line instead of TCP.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.IntVarP(&flagServeAPIPort, "api-port", "a", 0, "serve the control API on this port (0 disables)")
	f.StringVar(&flagServeForward, "forward", "", "OpenELIS base URL to forward received messages to")
	f.BoolVar(&flagServeInsecure, "insecure", false, "skip TLS certificate verification on the forward endpoint")
	f.IntVar(&flagServeMaxSessions, "max-sessions", simulator.DefaultMaxSessions, "concurrent session limit")
	f.StringVar(&flagServeSerial, "serial", "", "serve one session on this serial device instead of TCP")
	f.StringVar(&flagServeSerialMode, "serial-mode", serialport.DefaultMode, "serial line settings as baud,databits,parity,stopbits")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-port") {
		s.APIPort = flagServeAPIPort
	}
	if flags.Changed("forward") {
		s.ForwardURL = flagServeForward
	}
	if flags.Changed("max-sessions") {
		s.MaxSessions = flagServeMaxSessions
	}

	if flagServeSerial != "" && s.APIPort > 0 {
		return errors.New("the control API reports TCP server state; drop --api-port or --serial")
	}

	catalog, err := template.Load(s.TemplatesDir)
	if err != nil {
		return err
	}
	tpl := catalog.Get(s.AnalyzerType)

	var bridge *simulator.BridgeClient
	if s.ForwardURL != "" {
		var opts []simulator.BridgeOption
		if flagServeInsecure {
			opts = append(opts, simulator.WithInsecureTLS())
		}
		bridge = simulator.NewBridgeClient(s.ForwardURL, opts...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagServeSerial != "" {
		return serveSerial(ctx, tpl, bridge, s)
	}

	return serveTCP(ctx, tpl, catalog, bridge, s)
}

// serveTCP runs the analyzer server until the context is canceled, with the
// control API alongside when configured.
func serveTCP(ctx context.Context, tpl *template.Template, catalog *template.Catalog, bridge *simulator.BridgeClient, s *settings) error {
	serverOpts := []simulator.ServerOption{
		simulator.WithListenAddr(fmt.Sprintf(":%d", s.Port)),
		simulator.WithSessionOptions(lis1.WithResponseDelay(s.responseDelay())),
		simulator.WithSink(simulator.NewSink(bridge)),
	}
	if s.MaxSessions > 0 {
		serverOpts = append(serverOpts, simulator.WithMaxSessions(s.MaxSessions))
	}

	srv, err := simulator.NewServer(tpl, serverOpts...)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	var api *simulator.API
	if s.APIPort > 0 {
		apiOpts := []simulator.APIOption{
			simulator.WithAPIAddr(fmt.Sprintf(":%d", s.APIPort)),
			simulator.WithDefaultAnalyzerType(tpl.Type()),
		}
		if bridge != nil {
			apiOpts = append(apiOpts, simulator.WithPusher(simulator.NewBridgePusher(bridge)))
		}

		api, err = simulator.NewAPI(srv, catalog, apiOpts...)
		if err == nil {
			err = api.Start()
		}
		if err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)

			return err
		}
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if api != nil {
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn("astmsim: api shutdown", "error", err)
		}
	}

	return srv.Shutdown(shutdownCtx)
}

// serveSerial runs one analyzer-link session on a serial device until the
// context is canceled or the line hangs up.
func serveSerial(ctx context.Context, tpl *template.Template, bridge *simulator.BridgeClient, s *settings) error {
	mode, err := serialport.ParseMode(flagServeSerialMode)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	mgr := simulator.NewTaskManager(ctx, log)
	defer func() {
		mgr.Stop()
		mgr.Wait()
	}()

	sink := simulator.NewSink(bridge)
	if err := sink.Attach(mgr.Context(), mgr); err != nil {
		return err
	}

	cfg, err := lis1.NewSessionConfig(
		lis1.WithResponseDelay(s.responseDelay()),
		lis1.WithMessageHandler(sink.Handle),
		lis1.WithQueryResponder(func() *astm.Message { return generator.QueryResponse(tpl) }),
		lis1.WithLogger(log),
	)
	if err != nil {
		return err
	}

	conn, err := serialport.Open(flagServeSerial, mode)
	if err != nil {
		return err
	}

	sess := lis1.NewSession(conn, cfg)
	defer func() { _ = sess.Close() }()

	log.Info("astmsim: serving on serial line",
		"device", flagServeSerial,
		"mode", flagServeSerialMode,
		"analyzer", tpl.Analyzer.Name,
		"type", tpl.Type())

	err = sess.Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, lis1.ErrSessionClosed) {
		return nil
	}

	return err
}
