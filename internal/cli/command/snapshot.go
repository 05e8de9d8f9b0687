package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/chathub-go/internal/cli/output"
	"github.com/yndnr/chathub-go/internal/core/domain"
	"github.com/yndnr/chathub-go/internal/server/config"
	"github.com/yndnr/chathub-go/internal/storage"
	"github.com/yndnr/chathub-go/internal/storage/snapshot"
)

// Exit codes of snapshot verify.
const (
	exitSnapshotMissing = 3
	exitSnapshotCorrupt = 4
)

// SnapshotCommand returns the snapshot subcommand group.
func SnapshotCommand() *cli.Command {
	slotFlag := &cli.StringFlag{
		Name:  "slot",
		Usage: "Slot key to read (default: snapshot.slot from the config)",
	}
	return &cli.Command{
		Name:    "snapshot",
		Aliases: []string{"snap"},
		Usage:   "Inspect the published snapshot (reads the backend directly)",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print counters, accounts and messages of the snapshot",
				Flags: []cli.Flag{
					slotFlag,
					&cli.IntFlag{
						Name:  "messages",
						Usage: "Newest messages listed in table output (0 = all)",
						Value: 20,
					},
				},
				Action: snapshotShow,
			},
			{
				Name:   "verify",
				Usage:  "Decode and validate the snapshot; exits non-zero when unusable",
				Flags:  []cli.Flag{slotFlag},
				Action: snapshotVerify,
			},
		},
	}
}

// readSnapshot fetches and decodes the snapshot slot named by the config.
func readSnapshot(ctx context.Context, cfg *config.ServerConfig, slot string) (*snapshot.Document, int, error) {
	if slot == "" {
		slot = cfg.Snapshot.Slot
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Snapshot.Timeout)
	defer cancel()

	// Backend logging would interleave with command output.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	slots, err := storage.Open(ctx, cfg.Snapshot.StorageConfig(), quiet)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s backend: %w", cfg.Snapshot.Backend, err)
	}
	defer slots.Close()

	blob, err := slots.Get(ctx, slot)
	if err != nil {
		if errors.Is(err, storage.ErrSlotNotFound) {
			return nil, 0, domain.ErrSnapshotUnavailable.WithDetails(slot)
		}
		return nil, 0, fmt.Errorf("read slot %s: %w", slot, err)
	}

	doc, err := snapshot.Decode(blob, cfg.Snapshot.EncryptionConfig())
	if err != nil {
		return nil, len(blob), err
	}
	return doc, len(blob), nil
}

// snapshotSummary is the header printed by snapshot show.
type snapshotSummary struct {
	ID              string    `json:"id"`
	Version         int       `json:"version"`
	CapturedAt      time.Time `json:"captured_at"`
	Bytes           int       `json:"bytes"`
	Accounts        int       `json:"accounts"`
	Messages        int       `json:"messages"`
	LatestMessageID uint64    `json:"latest_message_id"`
	TotalAppended   uint64    `json:"total_appended"`
}

// accountRow never carries the password hash.
type accountRow struct {
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type messageRow struct {
	ID            uint64    `json:"id"`
	Author        string    `json:"author"`
	Text          string    `json:"text"`
	Attachment    string    `json:"attachment"`
	CreatedAt     time.Time `json:"created_at"`
	SourceAddress string    `json:"source_address" table:"wide"`
}

func newMessageRow(id uint64, author, text string, att *domain.Attachment, createdAt time.Time, addr string) messageRow {
	row := messageRow{ID: id, Author: author, Text: text, CreatedAt: createdAt, SourceAddress: addr}
	if att != nil && !att.Empty() {
		row.Attachment = string(att.Kind) + ":" + att.Reference
	}
	return row
}

type snapshotView struct {
	snapshotSummary
	Accounts []accountRow        `json:"account_list"`
	Messages []domain.ChatMessage `json:"message_list"`
}

func snapshotShow(c *cli.Context) error {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return err
	}
	doc, size, err := readSnapshot(c.Context, cfg, c.String("slot"))
	if err != nil {
		return err
	}

	summary := snapshotSummary{
		ID:              doc.ID,
		Version:         doc.Version,
		CapturedAt:      doc.CapturedAt,
		Bytes:           size,
		Accounts:        doc.Counters.Accounts,
		Messages:        doc.Counters.Messages,
		LatestMessageID: doc.Counters.LatestMessageID,
		TotalAppended:   doc.Counters.TotalAppended,
	}
	accounts := make([]accountRow, 0, len(doc.Accounts))
	for _, a := range doc.AccountList() {
		accounts = append(accounts, accountRow{Username: a.Username, CreatedAt: a.CreatedAt, LastSeenAt: a.LastSeenAt})
	}

	if ParseGlobalFlags(c).Output != output.FormatTable {
		return printResult(c, snapshotView{snapshotSummary: summary, Accounts: accounts, Messages: doc.Messages})
	}

	messages := doc.Messages
	if n := c.Int("messages"); n > 0 && len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	rows := make([]messageRow, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, newMessageRow(m.ID, m.Author, m.Text, m.Attachment, m.CreatedAt, m.SourceAddress))
	}

	w := stdout(c)
	if err := printResult(c, summary); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nAccounts (%d):\n", len(accounts))
	if err := printResult(c, accounts); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nMessages (%d of %d):\n", len(rows), len(doc.Messages))
	return printResult(c, rows)
}

type verifyResult struct {
	Valid      bool      `json:"valid"`
	Slot       string    `json:"slot"`
	ID         string    `json:"id,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	Accounts   int       `json:"accounts"`
	Messages   int       `json:"messages"`
	Error      string    `json:"error,omitempty"`
}

func snapshotVerify(c *cli.Context) error {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return err
	}
	slot := c.String("slot")
	if slot == "" {
		slot = cfg.Snapshot.Slot
	}

	doc, _, err := readSnapshot(c.Context, cfg, slot)
	res := verifyResult{Slot: slot}
	code := 0
	switch {
	case err == nil:
		res.Valid = true
		res.ID = doc.ID
		res.CapturedAt = doc.CapturedAt
		res.Accounts = len(doc.Accounts)
		res.Messages = len(doc.Messages)
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		res.Error = err.Error()
		code = exitSnapshotMissing
	case errors.Is(err, domain.ErrSnapshotCorrupt):
		res.Error = err.Error()
		code = exitSnapshotCorrupt
	default:
		return err
	}

	if perr := printResult(c, res); perr != nil {
		return perr
	}
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}
