// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wingedpig/brainloom/internal/session/staticui"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The server is local-only and trusts its single connecting peer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is the envelope shared by every server<->client message.
type wsFrame struct {
	Type         string         `json:"type"`
	ID           string         `json:"id,omitempty"`
	QuestionType string         `json:"questionType,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	Answer       map[string]any `json:"answer,omitempty"`
}

// sessionServer is the per-session HTTP+WebSocket listener.
type sessionServer struct {
	store     *Store
	sessionID string

	listener net.Listener
	http     *http.Server
	port     int

	mu          sync.Mutex
	conn        *websocket.Conn
	connEpoch   string // tags the current WS connection instance across reconnects, for log correlation
	writeMu     sync.Mutex
	wsConnected bool

	stopOnce sync.Once
}

func newSessionServer(store *Store, sess *Session, host string, port int) (*sessionServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("bind listener: %w", err)
	}

	srv := &sessionServer{
		store:     store,
		sessionID: sess.ID,
		listener:  ln,
		port:      ln.Addr().(*net.TCPAddr).Port,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", srv.handleIndex).Methods("GET")
	router.HandleFunc("/ws", srv.handleWS).Methods("GET")

	srv.http = &http.Server{Handler: router}
	go func() {
		if err := srv.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("session %s: http server stopped: %v", sess.ID, err)
		}
	}()

	return srv, nil
}

func (srv *sessionServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(staticui.Index)
}

func (srv *sessionServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session %s: ws upgrade failed: %v", srv.sessionID, err)
		return
	}

	epoch := uuid.New().String()
	srv.mu.Lock()
	srv.conn = conn
	srv.connEpoch = epoch
	srv.wsConnected = true
	srv.mu.Unlock()
	log.Printf("session %s: ws connected (epoch %s)", srv.sessionID, epoch)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Replay every pending question in insertion order.
	for _, q := range srv.store.pendingQuestionsInOrder(srv.sessionID) {
		srv.writeFrame(wsFrame{Type: "question", ID: q.ID, QuestionType: q.Type, Config: q.Config})
	}

	stopPing := make(chan struct{})
	go srv.pingLoop(stopPing)

	srv.readLoop(conn)

	close(stopPing)
	srv.mu.Lock()
	if srv.conn == conn {
		srv.conn = nil
		srv.wsConnected = false
		srv.connEpoch = ""
	}
	srv.mu.Unlock()
	conn.Close()
	log.Printf("session %s: ws disconnected (epoch %s)", srv.sessionID, epoch)
}

func (srv *sessionServer) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			srv.writeMu.Lock()
			err := srv.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			srv.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (srv *sessionServer) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Malformed inbound frames are ignored.
			continue
		}
		switch frame.Type {
		case "connected":
			// Acknowledged implicitly; no state change.
		case "response":
			srv.store.handleResponse(srv.sessionID, frame.ID, frame.Answer)
		}
	}
}

func (srv *sessionServer) connected() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.wsConnected
}

func (srv *sessionServer) sendQuestion(q *Question) {
	srv.writeFrame(wsFrame{Type: "question", ID: q.ID, QuestionType: q.Type, Config: q.Config})
}

func (srv *sessionServer) sendCancel(questionID string) {
	srv.writeFrame(wsFrame{Type: "cancel", ID: questionID})
}

func (srv *sessionServer) sendEnd() {
	srv.writeFrame(wsFrame{Type: "end"})
}

func (srv *sessionServer) writeFrame(frame wsFrame) {
	srv.mu.Lock()
	conn := srv.conn
	srv.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("session %s: marshal frame: %v", srv.sessionID, err)
		return
	}

	srv.writeMu.Lock()
	defer srv.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("session %s: write frame: %v", srv.sessionID, err)
	}
}

func (srv *sessionServer) stop() {
	srv.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.http.Shutdown(ctx)

		srv.mu.Lock()
		conn := srv.conn
		srv.conn = nil
		srv.wsConnected = false
		srv.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
}
