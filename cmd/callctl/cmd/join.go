package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/audiolive/signaling/internal/signaling"
)

var joinUser string

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and print signaling traffic until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := joinUser
		if user == "" {
			user = randomUserName()
		}

		wsURL, err := websocketURL(serverURL, user)
		if err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", wsURL, err)
		}
		defer conn.Close()

		join := signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: args[0]}
		if err := conn.WriteJSON(&join); err != nil {
			return fmt.Errorf("send join: %w", err)
		}
		fmt.Printf("connected as %s, watching room %s\n", user, args[0])

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		go func() {
			<-sig
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}()

		for {
			var frame signaling.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}
			printFrame(&frame)
		}
	},
}

// websocketURL turns the REST base URL into the ws endpoint for user.
func websocketURL(base, user string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + url.PathEscape(user)
	return u.String(), nil
}

func printFrame(f *signaling.Frame) {
	switch f.Type {
	case signaling.TypeRoomJoined:
		fmt.Printf("joined room %s (participants: %s)\n", f.RoomID, strings.Join(f.Participants, ", "))
	case signaling.TypeUserJoined:
		fmt.Printf("%s joined (participants: %s)\n", f.UserID, strings.Join(f.Participants, ", "))
	case signaling.TypeUserLeft:
		fmt.Printf("%s left (participants: %s)\n", f.UserID, strings.Join(f.Participants, ", "))
	case signaling.TypeRoomClosed:
		fmt.Println("room closed by server")
	case signaling.TypeError:
		fmt.Printf("server error: %s\n", f.Error)
	default:
		data, _ := json.Marshal(f.Data)
		fmt.Printf("%s from %s: %s\n", f.Type, f.FromUser, data)
	}
}

func init() {
	joinCmd.Flags().StringVar(&joinUser, "user", "", "user id to connect as (default: a generated name)")
	rootCmd.AddCommand(joinCmd)
}
