package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Server exposes the coordinator on two WebSocket listeners: one for the
// agent, one for the UI.
type Server struct {
	coord *Coordinator
	log   *slog.Logger

	host       string
	clientPort int
	uiPort     int

	upgrader websocket.Upgrader

	agentServer *http.Server
	uiServer    *http.Server
	agentAddr   net.Addr
	uiAddr      net.Addr
}

// NewServer creates a server for the given coordinator. Port 0 binds an
// ephemeral port, queryable through AgentAddr and UIAddr once started.
func NewServer(coord *Coordinator, logger *slog.Logger, host string, clientPort, uiPort int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		coord:      coord,
		log:        logger,
		host:       host,
		clientPort: clientPort,
		uiPort:     uiPort,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Both peers are local tools, not browsers with credentials.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// Start binds both listeners and serves until ctx is canceled. It returns
// after both listeners have shut down.
func (s *Server) Start(ctx context.Context) error {
	agentMux := http.NewServeMux()
	agentMux.HandleFunc("/", s.handleAgent)
	uiMux := http.NewServeMux()
	uiMux.HandleFunc("/", s.handleUI)

	agentLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.clientPort))
	if err != nil {
		return fmt.Errorf("listen for agent: %w", err)
	}
	uiLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.uiPort))
	if err != nil {
		agentLn.Close()
		return fmt.Errorf("listen for UI: %w", err)
	}
	s.agentAddr = agentLn.Addr()
	s.uiAddr = uiLn.Addr()

	s.agentServer = &http.Server{Handler: agentMux}
	s.uiServer = &http.Server{Handler: uiMux}

	s.log.Info("listening for agent connections", "addr", s.agentAddr.String())
	s.log.Info("listening for UI connection", "addr", s.uiAddr.String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.agentServer.Shutdown(shutdownCtx)
		s.uiServer.Shutdown(shutdownCtx)
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.agentServer.Serve(agentLn); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("agent server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.uiServer.Serve(uiLn); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("ui server: %w", err)
		}
	}()
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

// AgentAddr returns the bound agent listener address. Valid after Start.
func (s *Server) AgentAddr() net.Addr { return s.agentAddr }

// UIAddr returns the bound UI listener address. Valid after Start.
func (s *Server) UIAddr() net.Addr { return s.uiAddr }

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("agent websocket upgrade failed", "error", err)
		return
	}
	peer := newWSPeer(conn)

	if err := s.coord.AttachAgent(peer); err != nil {
		s.log.Warn("agent connection rejected", "error", err)
		peer.Close()
		return
	}
	defer func() {
		s.coord.DetachAgent(peer)
		peer.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := s.coord.HandleAgentMessage(raw); err != nil {
			s.log.Error("agent protocol violation", "error", err)
			return
		}
	}
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("UI websocket upgrade failed", "error", err)
		return
	}
	peer := newWSPeer(conn)

	if err := s.coord.AttachUI(peer); err != nil {
		s.log.Warn("UI connection rejected", "error", err)
		peer.Close()
		return
	}
	defer func() {
		s.coord.DetachUI(peer)
		peer.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// A malformed frame is reported back; the connection stays open.
		if err := s.coord.HandleUICommand(raw); err != nil {
			s.log.Warn("bad UI frame", "error", err)
			if frame, buildErr := errorMsg(err.Error()); buildErr == nil {
				peer.Send(frame)
			}
		}
	}
}

// wsPeer adapts a gorilla connection to the Peer interface. gorilla allows
// one concurrent writer, so writes are serialized here.
type wsPeer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn}
}

func (p *wsPeer) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *wsPeer) Close() error {
	return p.conn.Close()
}
