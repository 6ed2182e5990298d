package handlers

import (
	"net"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-capture/console/internal/chat"
	"github.com/knowledge-capture/console/internal/events"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/internal/upload"
	"github.com/knowledge-capture/console/pkg/identity"
)

type wireEvent struct {
	Type    events.Type            `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func TestWebSocketStreamsStateThenEvents(t *testing.T) {
	hub := events.NewHub(8)
	selector, err := strategy.NewSelector(strategy.Vector)
	require.NoError(t, err)
	id := identity.Static("varun@example.com")

	h := NewWebSocketHandler(hub,
		chat.NewOrchestrator(nil, id, selector),
		upload.NewOrchestrator(nil, id),
		selector,
	)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(h.HandleConnection))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	defer app.Shutdown()

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var types []events.Type
	for i := 0; i < 4; i++ {
		var raw struct {
			Type events.Type `json:"type"`
		}
		require.NoError(t, conn.ReadJSON(&raw))
		types = append(types, raw.Type)
	}
	assert.Equal(t, []events.Type{events.TypeChat, events.TypeUpload, events.TypeFiles, events.TypeStrategy}, types)

	require.NoError(t, selector.Select(strategy.Keyword))
	hub.Publish(events.Event{Type: events.TypeStrategy, Payload: selector.Current()})

	var e wireEvent
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.TypeStrategy, e.Type)
	assert.Equal(t, "keyword", e.Payload["id"])

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
