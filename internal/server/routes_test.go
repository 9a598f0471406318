package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolive/signaling/internal/signaling"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(signaling.NewHub()))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + user
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, f *signaling.Frame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(f))
}

func readFrame(t *testing.T, conn *websocket.Conn) *signaling.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f signaling.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return &f
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func doDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var health struct {
		Message        string `json:"message"`
		ActiveRooms    int    `json:"active_rooms"`
		ConnectedUsers int    `json:"connected_users"`
	}
	status := getJSON(t, srv.URL+"/", &health)

	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, health.Message)
	assert.Zero(t, health.ActiveRooms)
	assert.Zero(t, health.ConnectedUsers)
}

func TestRoomCRUD(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Create.
	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	req.NoError(err)
	req.Equal(http.StatusCreated, resp.StatusCode)
	var created struct {
		RoomID    string    `json:"room_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	_, err = uuid.Parse(created.RoomID)
	req.NoError(err, "room ids are uuids")
	req.WithinDuration(time.Now(), created.CreatedAt, time.Minute)

	// Get.
	var view signaling.RoomView
	req.Equal(http.StatusOK, getJSON(t, srv.URL+"/rooms/"+created.RoomID, &view))
	req.Equal(created.RoomID, view.RoomID)
	req.NotNil(view.Participants)
	req.Empty(view.Participants)
	req.Zero(view.ParticipantCount)

	// List.
	var rooms []signaling.RoomSummary
	req.Equal(http.StatusOK, getJSON(t, srv.URL+"/rooms", &rooms))
	req.Len(rooms, 1)
	req.Equal(created.RoomID, rooms[0].RoomID)

	// Delete.
	del := doDelete(t, srv.URL+"/rooms/"+created.RoomID)
	req.Equal(http.StatusOK, del.StatusCode)

	// Gone: both get and delete now report not found.
	var detail struct {
		Detail string `json:"detail"`
	}
	req.Equal(http.StatusNotFound, getJSON(t, srv.URL+"/rooms/"+created.RoomID, &detail))
	req.Equal("Room not found", detail.Detail)
	req.Equal(http.StatusNotFound, doDelete(t, srv.URL+"/rooms/"+created.RoomID).StatusCode)
}

// Two users joining the same room: the first hears about the second, the
// second gets the full participant list.
func TestJoinFlow(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	a := dial(t, srv, "A")
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})

	joined := readFrame(t, a)
	req.Equal(signaling.TypeRoomJoined, joined.Type)
	req.Equal("abc", joined.RoomID)
	req.Equal([]string{"A"}, joined.Participants)

	b := dial(t, srv, "B")
	sendFrame(t, b, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})

	announce := readFrame(t, a)
	req.Equal(signaling.TypeUserJoined, announce.Type)
	req.Equal("B", announce.UserID)
	req.Equal([]string{"A", "B"}, announce.Participants)

	confirm := readFrame(t, b)
	req.Equal(signaling.TypeRoomJoined, confirm.Type)
	req.Equal("abc", confirm.RoomID)
	req.Equal([]string{"A", "B"}, confirm.Participants)
}

func TestOfferIsRelayedVerbatim(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	a := dial(t, srv, "A")
	b := dial(t, srv, "B")
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	sendFrame(t, b, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	readFrame(t, b)

	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeOffer, Data: json.RawMessage(`{"sdp":"X"}`)})

	offer := readFrame(t, b)
	req.Equal(signaling.TypeOffer, offer.Type)
	req.Equal("A", offer.FromUser)
	req.JSONEq(`{"sdp":"X"}`, string(offer.Data))
}

func TestDisconnectAnnouncedAndRoomReaped(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	a := dial(t, srv, "A")
	b := dial(t, srv, "B")
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	sendFrame(t, b, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	readFrame(t, b)

	req.NoError(a.Close())

	left := readFrame(t, b)
	req.Equal(signaling.TypeUserLeft, left.Type)
	req.Equal("A", left.UserID)
	req.Equal([]string{"B"}, left.Participants)

	// The room survives with one participant.
	var rooms []signaling.RoomSummary
	getJSON(t, srv.URL+"/rooms", &rooms)
	req.Len(rooms, 1)
	req.Equal("abc", rooms[0].RoomID)
	req.Equal(1, rooms[0].ParticipantCount)

	// The last participant leaving removes the room entirely.
	req.NoError(b.Close())
	req.Eventually(func() bool {
		var rooms []signaling.RoomSummary
		getJSON(t, srv.URL+"/rooms", &rooms)
		return len(rooms) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDeleteRoomDisconnectsParticipants(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	a := dial(t, srv, "A")
	b := dial(t, srv, "B")
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	sendFrame(t, b, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	readFrame(t, b)

	req.Equal(http.StatusOK, doDelete(t, srv.URL+"/rooms/abc").StatusCode)

	req.Equal(signaling.TypeRoomClosed, readFrame(t, a).Type)
	req.Equal(signaling.TypeRoomClosed, readFrame(t, b).Type)

	var detail struct {
		Detail string `json:"detail"`
	}
	req.Equal(http.StatusNotFound, getJSON(t, srv.URL+"/rooms/abc", &detail))

	// Cleanup ran for both participants before the delete returned.
	var health struct {
		ActiveRooms    int `json:"active_rooms"`
		ConnectedUsers int `json:"connected_users"`
	}
	getJSON(t, srv.URL+"/", &health)
	req.Zero(health.ActiveRooms)
	req.Zero(health.ConnectedUsers)
}

func TestMalformedFrameTearsConnectionDown(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	a := dial(t, srv, "A")
	b := dial(t, srv, "B")
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	sendFrame(t, b, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	readFrame(t, a)
	readFrame(t, b)

	req.NoError(a.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))

	// The bad sender is cleaned up exactly like a disconnect.
	left := readFrame(t, b)
	req.Equal(signaling.TypeUserLeft, left.Type)
	req.Equal("A", left.UserID)

	req.NoError(a.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := a.ReadMessage()
	req.Error(err, "server must close the offending connection")

	var view signaling.RoomView
	req.Equal(http.StatusOK, getJSON(t, srv.URL+"/rooms/abc", &view))
	req.Equal([]string{"B"}, view.Participants)
}

func TestUnknownTypeIsRejectedWithoutDisconnect(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	a := dial(t, srv, "A")
	sendFrame(t, a, &signaling.Frame{Type: "wave"})

	rejected := readFrame(t, a)
	req.Equal(signaling.TypeError, rejected.Type)
	req.Contains(rejected.Error, "unknown frame type")

	// The connection is still fully usable.
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	joined := readFrame(t, a)
	req.Equal(signaling.TypeRoomJoined, joined.Type)
	req.Equal("abc", joined.RoomID)
}

func TestSignalBeforeJoiningIsDropped(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	a := dial(t, srv, "A")
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeOffer, Data: json.RawMessage(`{"sdp":"X"}`)})

	// Nothing comes back and the connection stays up: a follow-up join
	// still succeeds.
	sendFrame(t, a, &signaling.Frame{Type: signaling.TypeJoinRoom, RoomID: "abc"})
	joined := readFrame(t, a)
	req.Equal(signaling.TypeRoomJoined, joined.Type)
}
