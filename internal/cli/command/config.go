package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/chathub-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Server configuration checks",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective server configuration as dotted keys, secrets masked",
				Action: configShow,
			},
			{
				Name:   "check",
				Usage:  "Load and verify the server configuration",
				Action: configCheck,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return err
	}
	return printResult(c, config.Flatten(config.Sanitize(cfg)))
}

type checkResult struct {
	Valid   bool   `json:"valid"`
	File    string `json:"file"`
	Backend string `json:"snapshot_backend"`
	Slot    string `json:"snapshot_slot"`
	Addr    string `json:"http_addr"`
}

func configCheck(c *cli.Context) error {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return printResult(c, checkResult{
		Valid:   true,
		File:    ParseGlobalFlags(c).Config,
		Backend: cfg.Snapshot.Backend,
		Slot:    cfg.Snapshot.Slot,
		Addr:    cfg.Server.HTTP.Addr,
	})
}
