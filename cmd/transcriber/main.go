// Command transcriber turns long recordings into speaker-labelled
// transcripts.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codebuildervaibhav/transcript-pipeline/internal/config"
	"github.com/codebuildervaibhav/transcript-pipeline/internal/logger"
)

// app carries state shared by the subcommands once configuration is loaded.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper(), log: logger.Nop()}

	root := &cobra.Command{
		Use:          "transcriber",
		Short:        "Transcribe long recordings with speaker labels",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default config/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	a.bind(root.PersistentFlags().Lookup("log-level"), "log.level")

	root.AddCommand(
		newTranscribeCmd(a),
		newHistoryCmd(a),
		newCleanupCmd(a),
		newConfigCmd(a),
	)
	return root
}

// load reads the configuration and builds the root logger.
func (a *app) load() error {
	cfg, err := config.LoadWith(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Log)
	return nil
}
