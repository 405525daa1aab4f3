package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/autodev/internal/config"
	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/sessions"
	"github.com/dohr-michael/autodev/internal/storage"
)

// NewSessionsCommand returns the sessions subcommand.
func NewSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect stored chat sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sessions, most recent first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Show at most N sessions (0 = all)"},
					&cli.BoolFlag{Name: "json", Usage: "Print session metadata as JSON"},
				},
				Action: runSessionsList,
			},
			{
				Name:      "show",
				Usage:     "Print a session transcript",
				ArgsUsage: "<session_id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "events", Usage: "Print the recorded event timeline instead of messages"},
				},
				Action: runSessionsShow,
			},
			{
				Name:      "rm",
				Usage:     "Delete sessions and their transcripts",
				ArgsUsage: "<session_id>...",
				Action:    runSessionsRemove,
			},
		},
		DefaultCommand: "list",
	}
}

func runSessionsList(_ context.Context, cmd *cli.Command) error {
	list, err := sessions.NewFileStore(config.SessionsPath()).List()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if n := int(cmd.Int("limit")); n > 0 && len(list) > n {
		list = list[:n]
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAGENT\tMESSAGES\tTOKENS\tUPDATED\tTITLE")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID, orDash(s.Agent), s.MessageCount, s.HistoryTokens,
			s.UpdatedAt.Format("2006-01-02 15:04"), orDash(s.Title))
	}
	return w.Flush()
}

func runSessionsShow(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: autodev sessions show <session_id>")
	}

	store := sessions.NewFileStore(config.SessionsPath())
	s, err := store.Get(id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}

	fmt.Printf("%s  %s\n", s.ID, orDash(s.Title))
	fmt.Printf("usage: %d in / %d out, history ~%d tokens\n\n",
		s.TokenUsage.Input, s.TokenUsage.Output, s.HistoryTokens)

	if cmd.Bool("events") {
		cfg, _ := loadConfig(cmd)
		evts, err := storage.ReadEvents(cfg.Events.LogDir, id)
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}
		return printTimeline(os.Stdout, evts)
	}

	msgs, err := store.LoadMessages(id)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		fmt.Println("No messages in this session.")
		return nil
	}
	for _, m := range msgs {
		speaker := m.Role
		if m.Role == "assistant" && m.Agent != "" {
			speaker = m.Agent
		}
		fmt.Printf("[%s] %s: %s\n", m.Ts.Format("15:04:05"), speaker, m.Content)
	}
	return nil
}

func runSessionsRemove(_ context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("usage: autodev sessions rm <session_id>...")
	}
	store := sessions.NewFileStore(config.SessionsPath())
	for _, id := range ids {
		if err := store.Delete(id); err != nil {
			return err
		}
		fmt.Println("deleted", id)
	}
	return nil
}

// printTimeline writes one line per recorded event: time, type, source and
// the most telling payload field.
func printTimeline(w io.Writer, evts []events.Event) error {
	if len(evts) == 0 {
		_, err := fmt.Fprintln(w, "No recorded events.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range evts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("15:04:05.000"), e.Type, e.Source, eventSummary(e))
	}
	return tw.Flush()
}

func eventSummary(e events.Event) string {
	for _, key := range []string{"state", "content", "name", "script", "error"} {
		if v, ok := e.Payload[key]; ok {
			s := strings.ReplaceAll(fmt.Sprint(v), "\n", " ")
			if len(s) > 72 {
				s = s[:69] + "..."
			}
			return key + "=" + s
		}
	}
	return ""
}
