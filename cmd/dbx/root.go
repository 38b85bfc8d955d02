package main

import (
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ratio1/dropbox_sdk_go/pkg/dropbox"
)

// app carries the resolved configuration to subcommands.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config
	log        hclog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}
	root := &cobra.Command{
		Use:           "dbx",
		Short:         "Browse and transfer files in a Dropbox account",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file")
	flags.String("token", "", "OAuth2 access token (DBX_OAUTH_TOKEN)")
	flags.String("log-level", "warn", "log level (DBX_LOG_LEVEL)")
	cobra.CheckErr(bindFlags(a.v, flags))

	root.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newLoginCmd(a),
	)
	return root
}

// load resolves and validates the configuration for one command.
func (a *app) load(needToken bool) error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	if err := cfg.validate(needToken); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.logger()
	return nil
}

func (a *app) userClient() (*dropbox.UserAuthClient, error) {
	if err := a.load(true); err != nil {
		return nil, err
	}
	return dropbox.NewUserAuthClient(a.cfg.Token, a.cfg.clientOptions(a.log)...)
}
