package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// healthStreamInterval is how often the stream pushes a fresh health report.
var healthStreamInterval = 5 * time.Second

// HealthStream handles GET /health/stream: a websocket that pushes the same
// per-core report as GET /health on a fixed interval until the client hangs
// up.
func HealthStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[health] Failed to accept websocket: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	ticker := time.NewTicker(healthStreamInterval)
	defer ticker.Stop()

	for {
		data, err := json.Marshal(collectHealth(ctx))
		if err != nil {
			conn.Close(websocket.StatusInternalError, "encode health report")
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}
