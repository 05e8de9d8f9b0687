package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chathub-go/internal/cli/connection"
	"github.com/yndnr/chathub-go/internal/cli/output"
	"github.com/yndnr/chathub-go/internal/infra/buildinfo"
	"github.com/yndnr/chathub-go/internal/server/config"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "chathub-cli",
		Usage:   "ChatHub administration tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			HealthCommand(),
			MessagesCommand(),
			SnapshotCommand(),
			ConfigCommand(),
			HashCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "chathub-server address (e.g., 127.0.0.1:8080)",
			EnvVars: []string{"CHATHUB_SERVER"},
			Value:   config.DefaultHTTPAddr,
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "Session token for authenticated requests",
			EnvVars: []string{"CHATHUB_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Server configuration file used by offline commands",
			EnvVars: []string{"CHATHUB_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server string
	Token  string
	Config string
	Output output.Format
	Wide   bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, _ := output.ParseFormat(c.String("output"))
	return &GlobalFlags{
		Server: c.String("server"),
		Token:  c.String("token"),
		Config: c.String("config"),
		Output: format,
		Wide:   c.Bool("wide"),
	}
}

func newClient(c *cli.Context) *connection.HTTPClient {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(flags.Server, flags.Token)
}

// loadServerConfig loads the server configuration the same way
// chathub-server does, so offline commands see the same backend.
func loadServerConfig(c *cli.Context) (*config.ServerConfig, error) {
	cfg, err := config.Load(ParseGlobalFlags(c).Config, nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func stdout(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// printResult writes data in the selected output format.
func printResult(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	return output.Write(stdout(c), flags.Output, flags.Wide, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
