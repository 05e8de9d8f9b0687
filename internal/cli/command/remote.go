package command

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chathub-go/internal/cli/connection"
	"github.com/yndnr/chathub-go/internal/cli/output"
	"github.com/yndnr/chathub-go/internal/core/service"
	"github.com/yndnr/chathub-go/internal/server/httpserver/handler"
)

const requestTimeout = 10 * time.Second

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show store sizes and snapshot progress of a running server",
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()

	resp, err := newClient(c).Get(ctx, "/api/status", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var st service.Status
	if err := connection.ParseResponse(resp, &st); err != nil {
		return err
	}
	return printResult(c, st)
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check liveness and readiness of a running server",
		Action: healthAction,
	}
}

type healthResult struct {
	Server string `json:"server"`
	Live   bool   `json:"live"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func healthAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()

	client := newClient(c)
	res := healthResult{Server: client.BaseURL()}

	if err := checkEndpoint(ctx, client, "/health"); err != nil {
		res.Detail = err.Error()
	} else {
		res.Live = true
		if err := checkEndpoint(ctx, client, "/ready"); err != nil {
			res.Detail = err.Error()
		} else {
			res.Ready = true
		}
	}

	if err := printResult(c, res); err != nil {
		return err
	}
	if !res.Ready {
		return cli.Exit("", 1)
	}
	return nil
}

func checkEndpoint(ctx context.Context, client *connection.HTTPClient, path string) error {
	resp, err := client.Get(ctx, path, nil)
	if err != nil {
		return err
	}
	return connection.ParseResponse(resp, nil)
}

// MessagesCommand returns the messages command.
func MessagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "messages",
		Usage: "List recent messages (requires --token)",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "since",
				Usage: "Only show messages with an id greater than this",
			},
		},
		Action: messagesAction,
	}
}

func messagesAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, requestTimeout)
	defer cancel()

	query := url.Values{}
	if since := c.Uint64("since"); since > 0 {
		query.Set("since", strconv.FormatUint(since, 10))
	}

	resp, err := newClient(c).Get(ctx, "/api/messages", query)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var list handler.ListMessagesResponse
	if err := connection.ParseResponse(resp, &list); err != nil {
		return err
	}

	if ParseGlobalFlags(c).Output != output.FormatTable {
		return printResult(c, list)
	}
	rows := make([]messageRow, 0, len(list.Messages))
	for _, m := range list.Messages {
		rows = append(rows, newMessageRow(m.ID, m.Author, m.Text, m.Attachment, m.CreatedAt, ""))
	}
	return printResult(c, rows)
}
