package cli

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/internal/store"
	"github.com/pentia/chatcore/pkg/validator"
)

func init() {
	messagesTailCmd.Flags().IntP("limit", "n", 20, "number of recent messages to show first")
	messagesTailCmd.Flags().Bool("no-follow", false, "print recent messages and exit")
	messagesEditCmd.Flags().String("text", "", "replacement text (required)")
	messagesEditCmd.MarkFlagRequired("text")

	messagesCmd.AddCommand(messagesTailCmd, messagesEditCmd, messagesRemoveCmd)
	rootCmd.AddCommand(messagesCmd)
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Inspect and moderate room messages",
}

var messagesTailCmd = &cobra.Command{
	Use:   "tail [room-id]",
	Short: "Print a room's recent messages and follow new ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		noFollow, _ := cmd.Flags().GetBool("no-follow")
		out := cmd.OutOrStdout()
		if err := checkIDs(args...); err != nil {
			return err
		}

		backend, err := openBackend(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		if noFollow {
			page, err := backend.ReadMessagePage(cmd.Context(), args[0], limit, nil)
			if err != nil {
				return err
			}
			for _, m := range page {
				printMessage(out, m)
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		lines := make(chan domain.Message, 64)
		unsubscribe, err := backend.SubscribeAdded(ctx, args[0], limit, func(m domain.Message) {
			select {
			case lines <- m:
			case <-ctx.Done():
			}
		})
		if err != nil {
			return err
		}
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return nil
			case m := <-lines:
				printMessage(out, m)
			}
		}
	},
}

var messagesEditCmd = &cobra.Command{
	Use:   "edit [room-id] [message-id]",
	Short: "Replace a message's text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		if err := checkIDs(args...); err != nil {
			return err
		}

		backend, err := openBackend(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		err = backend.UpdateMessage(cmd.Context(), domain.Message{ID: args[1], RoomID: args[0], Text: text})
		if errors.Is(err, store.ErrMessageNotFound) {
			return fmt.Errorf("message %s not found in room %s", args[1], args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated message %s\n", args[1])
		return nil
	},
}

var messagesRemoveCmd = &cobra.Command{
	Use:     "remove [room-id] [message-id]",
	Aliases: []string{"rm"},
	Short:   "Remove a message",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkIDs(args...); err != nil {
			return err
		}

		backend, err := openBackend(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		err = backend.RemoveMessage(cmd.Context(), args[0], args[1])
		if errors.Is(err, store.ErrMessageNotFound) {
			return fmt.Errorf("message %s not found in room %s", args[1], args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed message %s\n", args[1])
		return nil
	},
}

// checkIDs rejects malformed room or message ids before touching the store.
func checkIDs(ids ...string) error {
	for _, id := range ids {
		if errs := validator.ValidateID(id); errs.HasErrors() {
			return fmt.Errorf("invalid id %q: %s", id, formatErrors(errs))
		}
	}
	return nil
}

func printMessage(w io.Writer, m domain.Message) {
	ts := time.UnixMilli(m.Timestamp).UTC().Format("2006-01-02 15:04:05")
	body := m.Text
	if !m.HasText() && m.HasImage() {
		body = "[image] " + *m.ImageURL
	}
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	fmt.Fprintf(w, "%s  %-16s %s  (%s)\n", ts, sender, body, m.ID)
}
