package run

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vicegrid/gridnet/client"
	"github.com/vicegrid/gridnet/config"
	"github.com/vicegrid/gridnet/tools"
)

var (
	configFile = tools.GetenvDefault(config.EnvPrefix+"CONFIG", "config.yaml")

	Cmd = &cobra.Command{
		Use:   "run",
		Short: "Connect to a server and keep the session alive",
		Args:  cobra.NoArgs,
		RunE:  runSession,
	}
)

func init() {
	Cmd.Flags().StringVarP(&configFile, "config", "c", configFile, "path of config file")
}

func runSession(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "run-cmd").Logger()

	logger.Info().Str("config", configFile).Msg("loading configuration")
	cfg, err := config.LoadClientConfig(configFile)
	if err != nil {
		return err
	}

	engine, err := client.NewEngine(client.Options{
		PlayerName:      cfg.PlayerName,
		AuthTicket:      cfg.DecodedAuthTicket(),
		ProtocolVersion: cfg.ProtocolVersion,
		Metrics:         client.NewLogMetricSink(log.Logger),
		Logger:          log.Logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	fatal := make(chan string, 1)
	engine.BindErrorHandler(func(message string) {
		select {
		case fatal <- message:
		default:
		}
	})

	events := engine.Events()
	events.ConnectionProgress.Add(func(message string, done, total int) {
		logger.Info().Int("done", done).Int("total", total).Msg(message)
	})
	events.ConnectionError.Add(func(message string) {
		logger.Error().Msg(message)
	})
	events.ConnectionTimedOut.Add(func(message string) {
		logger.Error().Msg(message)
	})
	events.StateChanged.Add(func(current, previous client.ConnectionState) {
		logger.Info().Stringer("from", previous).Stringer("to", current).Msg("connection state")
	})

	// Drain routed payloads so queue delay stays visible even without
	// a game attached.
	go func() {
		for {
			if !engine.WaitForRoutedPacket(time.Second) {
				continue
			}
			for {
				pkt, ok := engine.DequeueRoutedPacket()
				if !ok {
					break
				}
				logger.Trace().Uint16("net_id", pkt.NetID).Int("len", len(pkt.Payload)).Msg("routed packet")
			}
		}
	}()

	if err := engine.Connect(cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(config.DefaultFrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			engine.RunFrame()

		case message := <-fatal:
			logger.Error().Msg(message)
			engine.Disconnect(message)
			engine.FinalizeDisconnect()
			return nil

		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			engine.Disconnect("Quit")
			engine.FinalizeDisconnect()
			return nil
		}
	}
}
