package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imranansari/apigee-deploy-wf/deployment"
)

const streamWriteTimeout = 10 * time.Second

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin:     sameOriginOr(allowedOrigins),
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Stream events
const (
	streamEventLog    = "log"
	streamEventReset  = "reset"
	streamEventStatus = "status"
)

type streamMessage struct {
	Event       string               `json:"event"`
	Log         *deployment.LogEntry `json:"log,omitempty"`
	Status      deployment.Status    `json:"status,omitempty"`
	CurrentStep int                  `json:"currentStep"`
}

// logStream turns successive snapshots into log and status messages
type logStream struct {
	conn   *websocket.Conn
	epoch  int
	sent   int
	status deployment.Status
	step   int
}

func newLogStream(conn *websocket.Conn, initial deployment.Snapshot) *logStream {
	return &logStream{conn: conn, epoch: initial.Deployment.LogEpoch}
}

// messages returns what the client is missing from snapshot. Snapshots may be
// coalesced, so a cleared log is detected by its epoch rather than its length.
func (ls *logStream) messages(snapshot deployment.Snapshot) []streamMessage {
	var out []streamMessage

	logs := snapshot.Deployment.Logs
	if snapshot.Deployment.LogEpoch != ls.epoch || len(logs) < ls.sent {
		out = append(out, streamMessage{Event: streamEventReset})
		ls.epoch = snapshot.Deployment.LogEpoch
		ls.sent = 0
	}
	for i := ls.sent; i < len(logs); i++ {
		entry := logs[i]
		out = append(out, streamMessage{Event: streamEventLog, Log: &entry})
	}
	ls.sent = len(logs)

	if snapshot.Deployment.Status != ls.status || snapshot.Deployment.CurrentStep != ls.step {
		ls.status = snapshot.Deployment.Status
		ls.step = snapshot.Deployment.CurrentStep
		out = append(out, streamMessage{
			Event:       streamEventStatus,
			Status:      ls.status,
			CurrentStep: ls.step,
		})
	}
	return out
}

func (ls *logStream) send(snapshot deployment.Snapshot) error {
	for _, msg := range ls.messages(snapshot) {
		if err := ls.write(msg); err != nil {
			return err
		}
	}
	return nil
}

func (ls *logStream) write(msg streamMessage) error {
	if err := ls.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return ls.conn.WriteJSON(msg)
}

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)

	// w.Header carries the session cookie of a new session
	conn, err := s.upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Log stream upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := session.Subscribe()
	defer cancel()

	// the client never sends; reading only notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	initial := session.Snapshot()
	stream := newLogStream(conn, initial)
	if err := stream.send(initial); err != nil {
		return
	}

	for {
		select {
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := stream.send(snapshot); err != nil {
				s.logger.Debug().Err(err).Str("session_id", session.ID()).Msg("Log stream closed")
				return
			}
		case <-closed:
			return
		case <-s.runCtx.Done():
			return
		}
	}
}
