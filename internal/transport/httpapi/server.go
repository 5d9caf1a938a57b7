package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sandevgo/eqchat/internal/broker"
	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/internal/service/agent"
	"github.com/sandevgo/eqchat/internal/service/memory"
	"github.com/sandevgo/eqchat/pkg/log"
)

// Server exposes the agent and its stores over HTTP. It satisfies the
// srv.Service lifecycle so it shuts down with the rest of the process.
type Server struct {
	addr     string
	agent    *agent.Agent
	store    core.ConversationStore
	memory   *memory.Service
	toolLogs core.ToolLogStore
	producer broker.Producer // optional, enables the event entry path

	httpSrv *http.Server
}

func NewServer(
	addr string,
	ag *agent.Agent,
	store core.ConversationStore,
	mem *memory.Service,
	toolLogs core.ToolLogStore,
	producer broker.Producer,
) *Server {
	s := &Server{
		addr:     addr,
		agent:    ag,
		store:    store,
		memory:   mem,
		toolLogs: toolLogs,
		producer: producer,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/agent/chat", s.handleChat)
	mux.HandleFunc("GET /v1/conversation/{user_id}", s.handleConversation)
	mux.HandleFunc("POST /v1/conversation/messages", s.handleAppendMessage)
	mux.HandleFunc("GET /v1/agent/memory/long-term/{user_id}", s.handleLongTermMemory)
	mux.HandleFunc("GET /v1/agent/tools/search-results/{user_id}", s.handleSearchResults)
	mux.HandleFunc("DELETE /v1/agent/reset/{user_id}", s.handleReset)
	mux.HandleFunc("POST /v1/events/chat", s.handlePublishChatEvent)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("addr", s.addr).Msg("starting http server")

	// Requests inherit the process context so handlers pick up the logger.
	s.httpSrv.BaseContext = func(net.Listener) context.Context { return ctx }

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
