package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/events"
	"github.com/Nixie-Tech-LLC/ekran/internal/http/api"
	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotFunc returns the current merged view.
type SnapshotFunc func() model.Snapshot

type EventsController struct {
	hub      *events.Hub
	snapshot SnapshotFunc
}

// EventsModule mounts the /events websocket. Each connection first receives
// the current snapshot, then every hub event as JSON. A client that cannot
// keep up misses events and should re-read /status.
func EventsModule(hub *events.Hub, snapshot SnapshotFunc) api.Module {
	ctl := &EventsController{hub: hub, snapshot: snapshot}
	return api.ModuleFunc(func(c *api.Controller) {
		c.RAW(http.MethodGet, "/events", ctl.stream)
	})
}

// GET /api/events
func (e *EventsController) stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id := "ws-" + uuid.NewString()
	ch := make(chan events.Event, 32)
	if err := e.hub.Subscribe(id, ch); err != nil {
		log.Error().Err(err).Msg("could not subscribe websocket")
		return
	}
	defer e.hub.Unsubscribe(id)
	log.Info().Str("subscriber", id).Str("ip", c.ClientIP()).Msg("event stream opened")

	// reader: only pongs and close frames are expected
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	initial := events.Event{
		Type: events.PlaybackStateChanged,
		At:   time.Now().UTC(),
		Data: events.StateChange{Snapshot: e.snapshot()},
	}
	if err := write(conn, initial); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			log.Info().Str("subscriber", id).Msg("event stream closed")
			return
		case ev := <-ch:
			if err := write(conn, ev); err != nil {
				log.Debug().Err(err).Str("subscriber", id).Msg("event stream write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func write(conn *websocket.Conn, ev events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
