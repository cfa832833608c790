package devserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ReloadPath is the fixed endpoint the injected autoreload script connects
// to.
const ReloadPath = "/__trunkgo/ws"

// autoreloadScript is injected into every served HTML document when
// autoreload is enabled. It reconnects on drop and reloads the page once
// the reconnect succeeds, so a dev-server restart doesn't require a manual
// refresh.
const autoreloadScript = `<script>
(function() {
  function connect(reconnecting) {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + ReloadPath + `");
    ws.onopen = function() {
      if (reconnecting) { location.reload(); }
    };
    ws.onmessage = function(ev) {
      if (ev.data === "reload") { location.reload(); }
    };
    ws.onclose = function() { setTimeout(function() { connect(true); }, 1000); };
  }
  connect(false);
})();
</script>`

// reloadBroadcaster tracks connected autoreload clients and pushes a
// "reload" message to each whenever a build completes. Slow clients are
// dropped rather than allowed to back-pressure the broadcast, generalizing
// the teacher's cyclic buffer's non-blocking client-notify policy.
type reloadBroadcaster struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]*websocket.Conn
}

func newReloadBroadcaster(logger *slog.Logger) *reloadBroadcaster {
	return &reloadBroadcaster{
		logger:  logger,
		clients: make(map[uuid.UUID]*websocket.Conn),
	}
}

func (b *reloadBroadcaster) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Debug("autoreload upgrade failed", "error", err)
			return
		}

		id := uuid.New()
		b.mu.Lock()
		b.clients[id] = conn
		b.mu.Unlock()

		defer func() {
			b.mu.Lock()
			delete(b.clients, id)
			b.mu.Unlock()
			conn.Close()
		}()

		// Block reading until the client disconnects; the client never
		// sends anything meaningful, but ReadMessage is how we notice a
		// closed connection.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// broadcastWriteTimeout bounds how long Broadcast waits on one client.
const broadcastWriteTimeout = time.Second

// Broadcast pushes a reload notification to every connected client. A
// client that can't accept the write within broadcastWriteTimeout is
// dropped, so a slow client delays the broadcast by at most that long.
func (b *reloadBroadcaster) Broadcast() {
	b.mu.RLock()
	targets := make(map[uuid.UUID]*websocket.Conn, len(b.clients))
	for id, conn := range b.clients {
		targets[id] = conn
	}
	b.mu.RUnlock()

	for id, conn := range targets {
		_ = conn.SetWriteDeadline(time.Now().Add(broadcastWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			b.logger.Debug("dropping slow autoreload client", "client_id", id, "error", err)
			b.mu.Lock()
			delete(b.clients, id)
			b.mu.Unlock()
			conn.Close()
		}
	}
}

// ClientCount returns the number of currently connected autoreload
// clients.
func (b *reloadBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
