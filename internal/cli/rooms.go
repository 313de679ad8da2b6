package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pentia/chatcore/internal/domain"
	"github.com/pentia/chatcore/pkg/validator"
)

func init() {
	roomsCreateCmd.Flags().String("name", "", "display name (required)")
	roomsCreateCmd.Flags().String("description", "", "optional description")
	roomsCreateCmd.MarkFlagRequired("name")

	roomsCmd.AddCommand(roomsCreateCmd, roomsListCmd)
	rootCmd.AddCommand(roomsCmd)
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Manage chat rooms",
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create [room-id]",
	Short: "Create a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")

		if errs := validator.ValidateRoom(args[0], name); errs.HasErrors() {
			return fmt.Errorf("invalid room: %s", formatErrors(errs))
		}

		backend, err := openBackend(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		existing, err := backend.GetRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("room %q already exists", args[0])
		}

		room := &domain.Room{ID: args[0], Name: strings.TrimSpace(name)}
		if description != "" {
			room.Description = &description
		}
		if err := backend.CreateRoom(cmd.Context(), room); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created room %s\n", room.ID)
		return nil
	},
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rooms, most recently active first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		rooms, err := backend.ListRooms(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLAST MESSAGE")
		for _, r := range rooms {
			last := "-"
			if r.LastMessageTimestamp > 0 {
				last = time.UnixMilli(r.LastMessageTimestamp).UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Name, last)
		}
		return w.Flush()
	},
}

func formatErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for field, msg := range errs {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}
