package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ledble-controller/internal/ble"
	"ledble-controller/internal/core"
	"ledble-controller/internal/lua"
	"ledble-controller/internal/scheduler"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub            *Hub
	luaEngine      *lua.Engine
	eventBus       *core.EventBus
	state          *core.State
	scheduler      *scheduler.Scheduler
	commandChannel core.CommandChannel
	httpServer     *http.Server
	log            *logrus.Entry

	staticFilesDir string
	allowedOrigins []string
	upgrader       websocket.Upgrader

	ctx context.Context
}

// NewServer creates a new server instance.
func NewServer(luaEngine *lua.Engine, eventBus *core.EventBus, state *core.State, sched *scheduler.Scheduler, commandChannel core.CommandChannel, port string, staticFilesDir string, allowedOrigins []string) *Server {
	s := &Server{
		Hub:            NewHub(),
		luaEngine:      luaEngine,
		eventBus:       eventBus,
		state:          state,
		scheduler:      sched,
		commandChannel: commandChannel,
		log:            logrus.WithField("component", "http"),
		staticFilesDir: staticFilesDir,
		allowedOrigins: allowedOrigins,
		ctx:            context.Background(),
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				s.log.Warn("WebSocket CheckOrigin is disabled.")
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			s.log.Warnf("WebSocket connection blocked: Origin '%s' not in allowed list.", origin)
			return false
		},
	}

	s.httpServer = &http.Server{Addr: ":" + port, Handler: s.Handler()}
	return s
}

// Handler returns the HTTP routes: static files and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.staticFilesDir)))
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start runs the hub and forwards bus events to clients until ctx ends.
func (s *Server) Start(ctx context.Context) {
	s.ctx = ctx
	go s.Hub.Run(ctx)

	types := eventTypes()
	sub := s.eventBus.Subscribe(types...)
	go func() {
		defer s.eventBus.Unsubscribe(sub, types...)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-sub:
				if msg, ok := messageFor(ev); ok {
					s.Hub.Broadcast(msg)
				}
			}
		}
	}()
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.Start(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("HTTP shutdown: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// modeTables lists every table the UI can offer as a picker.
func modeTables() map[string][]ble.NamedValue {
	return map[string][]ble.NamedValue{
		"rgb":               ble.RGBModes.Entries,
		"dynamic":           ble.DynamicModes.Entries,
		"color_temperature": ble.ColorTempModes.Entries,
		"dim":               ble.DimModes.Entries,
		"timer":             ble.TimerModels.Entries,
		"rgb_sort":          ble.RGBSorts.Entries,
		"diy_style":         ble.DIYStyles.Entries,
	}
}

// initialMessages is what a freshly connected client needs to render.
func (s *Server) initialMessages() []Message {
	state := s.state.Clone()
	msgs := []Message{
		NewMessage("ble_status", map[string]interface{}{
			"connected": state.IsConnected,
			"address":   state.Address,
			"name":      state.Name,
			"rssi":      state.RSSI,
		}),
		NewMessage("device_state", map[string]interface{}{
			"isOn":       state.Power,
			"r":          state.ColorR,
			"g":          state.ColorG,
			"b":          state.ColorB,
			"hex":        fmt.Sprintf("#%02X%02X%02X", state.ColorR, state.ColorG, state.ColorB),
			"brightness": state.Brightness,
			"speed":      state.Speed,
			"mode":       state.Mode,
		}),
		NewMessage("mode_tables", modeTables()),
	}

	if patterns, err := s.luaEngine.GetPatternList(); err == nil {
		msgs = append(msgs, NewMessage("pattern_list", patterns))
	} else {
		s.log.Warnf("Pattern list unavailable: %v", err)
	}

	msgs = append(msgs,
		NewMessage("pattern_status", map[string]string{"running": state.RunningPattern}),
		NewMessage("schedule_list", s.scheduler.GetAll()),
	)
	return msgs
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	for _, msg := range s.initialMessages() {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return
		}
	}

	select {
	case s.Hub.register <- conn:
	case <-s.ctx.Done():
		conn.Close()
		return
	}
	defer func() {
		select {
		case s.Hub.unregister <- conn:
		case <-s.ctx.Done():
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd core.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.log.Warnf("Error unmarshalling command: %v", err)
			continue
		}
		if cmd.Type == "" {
			continue
		}
		select {
		case s.commandChannel <- cmd:
		case <-s.ctx.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}
