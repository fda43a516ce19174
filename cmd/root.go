// Package cmd builds TUNA's cobra command tree: a single root command
// with --input/--output/--sample-rate flags, styled after the
// teacher's cmd/root.go RootCommand(settings) + setupFlags pattern
// (one root command, viper-backed settings; logger/config
// initialisation happens at the start of RunE).
package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/tuna/internal/tconf"
	"github.com/tphakala/tuna/internal/terrors"
	"github.com/tphakala/tuna/internal/tlog"
	"github.com/tphakala/tuna/internal/tuna/wire"
)

var outputFlags []string

// RootCommand builds TUNA's single cobra command: run a producer ->
// queue -> {time-slice, pulse} analysis pipeline until stopped.
func RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tuna",
		Short: "Real-time underwater-acoustic analysis pipeline",
		RunE:  runPipeline,
	}

	root.Flags().String("input", "zero:", "input source: sndfile:PATH | alsa:DEVICE | zero")
	root.Flags().StringArrayVar(&outputFlags, "output", nil,
		"output sink (repeatable): time_slice:PATH.csv | pulse:PATH.csv | sndfile:PREFIX[,max_samples] | null")
	root.Flags().Int("sample-rate", 48000, "capture/generator sample rate in Hz")
	root.Flags().String("config", "", "path to a tuna.yaml config file")

	if err := viper.BindPFlag("input", root.Flags().Lookup("input")); err != nil {
		panic(fmt.Errorf("cmd: binding --input: %w", err))
	}
	if err := viper.BindPFlag("sample_rate", root.Flags().Lookup("sample-rate")); err != nil {
		panic(fmt.Errorf("cmd: binding --sample-rate: %w", err))
	}

	return root
}

func runPipeline(cmd *cobra.Command, args []string) error {
	settings, err := tconf.Load()
	if err == nil {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			viper.SetConfigFile(path)
			if err = viper.ReadInConfig(); err == nil {
				err = viper.Unmarshal(settings)
			}
		}
	}
	if err != nil {
		return terrors.New(err).Category(terrors.CategoryValidation).
			Context("operation", "load_config").Build()
	}

	tlog.Init(settings.Log.Path)
	logger := tlog.ForComponent("cmd")

	outputs := outputFlags
	if len(outputs) == 0 {
		outputs = []string{settings.Output}
	}

	pipe, err := wire.Build(settings, settings.Input, outputs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Infof("received shutdown signal, stopping producer")
		pipe.Stop(nil)
	}()

	runErr := pipe.Run()
	exitErr := pipe.Exit()

	if runErr != nil {
		return runErr
	}
	return exitErr
}
