package command

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chathub-go/internal/core/credential"
)

// HashCommand returns the hash command.
func HashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the credential hash the server would store for a password",
		ArgsUsage: "PASSWORD",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdin",
				Usage: "Read the password from the first line of stdin",
			},
		},
		Action: hashAction,
	}
}

func hashAction(c *cli.Context) error {
	password, err := readPassword(c)
	if err != nil {
		return err
	}
	cfg, err := loadServerConfig(c)
	if err != nil {
		return err
	}

	vault := credential.New(cfg.Credential.VaultParams())
	_, err = fmt.Fprintln(stdout(c), vault.Hash(password))
	return err
}

func readPassword(c *cli.Context) (string, error) {
	if !c.Bool("stdin") {
		if c.NArg() != 1 {
			return "", errors.New("usage: chathub-cli hash PASSWORD (or --stdin)")
		}
		return c.Args().First(), nil
	}

	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
