package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/tithe/internal/events"
)

var errEventsDisabled = errors.New("session events are not configured: set amqp.url or AMQP_URL")

// ─── events ─────────────────────────────────────────────────────────────────

func (a *App) eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print session events as they are published",
		Long: `Follow the session event exchange and print one line per saved or
deleted calculation. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.EventsEnabled() {
				return errEventsDisabled
			}
			client, err := events.NewAMQPClient(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange, a.cfg.AMQP.RoutingKey)
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.Consume(cmd.Context(), func(ev *events.SessionEvent) error {
				a.printEvent(ev)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func (a *App) printEvent(ev *events.SessionEvent) {
	ts := ev.Timestamp.Local().Format("2006-01-02 15:04:05")
	switch ev.Type {
	case events.SessionSaved:
		fmt.Fprintf(a.out, "%s  saved    %s  %q  %s  total %.2f  receipts %d\n",
			ts, ev.SessionID, ev.Title, ev.TimeTag, ev.Total, ev.Attachments)
	default:
		fmt.Fprintf(a.out, "%s  %-7s  %s\n", ts, ev.Type, ev.SessionID)
	}
}
