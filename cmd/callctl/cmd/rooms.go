package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/audiolive/signaling/internal/signaling"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Inspect and manage call rooms",
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rooms []signaling.RoomSummary
		if err := getJSON(serverURL+"/rooms", &rooms); err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Room", "Created", "Participants"})
		for _, r := range rooms {
			t.AppendRow(table.Row{r.RoomID, r.CreatedAt.Format(time.RFC3339), r.ParticipantCount})
		}
		t.Render()
		return nil
	},
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new empty room",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(serverURL+"/rooms", "application/json", nil)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		defer resp.Body.Close()

		var room signaling.RoomSummary
		if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Println(room.RoomID)
		return nil
	},
}

var roomsDeleteCmd = &cobra.Command{
	Use:   "delete <room-id>",
	Short: "Force-close a room, disconnecting its participants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodDelete, serverURL+"/rooms/"+args[0], nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("room %s not found", args[0])
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("delete room: unexpected status %s", resp.Status)
		}
		fmt.Printf("room %s deleted\n", args[0])
		return nil
	},
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func init() {
	roomsCmd.AddCommand(roomsListCmd, roomsCreateCmd, roomsDeleteCmd)
	rootCmd.AddCommand(roomsCmd)
}
