// Package server exposes the engine over a local HTTP API: the refresh
// notify endpoint, read-only projections, selection and sort intents, a
// websocket event stream and prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/notify"
	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/refresh"
	"github.com/iamgilwell/proctopo/internal/selection"
)

const eventHello engine.EventType = "hello"

// Engine is the part of the engine the API drives.
type Engine interface {
	Snapshot() *engine.Snapshot
	Select(pid int) selection.Highlight
	Clear()
	Highlight() selection.Highlight
	SelectedProcess() (query.ProcessRecord, bool)
	SetSortOrder(keys []ordering.Key) error
	OnChange(fn func(engine.Event))
}

// StateReporter reports the refresh controller state.
type StateReporter interface {
	State() refresh.State
}

// Options configures a Server.
type Options struct {
	Name     string
	Address  string
	Port     int
	InfoFile string
	Metrics  bool
	Logger   *slog.Logger
}

// Server is the HTTP surface of one engine.
type Server struct {
	opts   Options
	eng    Engine
	bus    *notify.Bus
	state  StateReporter
	hub    *hub
	router *gin.Engine
	log    *slog.Logger
}

// New wires routes for eng. Refresh requests are published on bus.
func New(eng Engine, bus *notify.Bus, state StateReporter, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		opts:  opts,
		eng:   eng,
		bus:   bus,
		state: state,
		hub:   newHub(log),
		log:   log,
	}
	eng.OnChange(s.hub.broadcast)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.GET("/serv_info", s.handleServInfo)
	r.POST("/notify", s.handleNotify)
	r.GET("/ws", s.handleWebSocket)
	if s.opts.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/table", s.handleTable)
	api.GET("/tree", s.handleTree)
	api.GET("/graph", s.handleGraph)
	api.GET("/selection", s.handleGetSelection)
	api.PUT("/selection", s.handlePutSelection)
	api.DELETE("/selection", s.handleDeleteSelection)
	api.GET("/selection/process", s.handleSelectedProcess)
	api.PUT("/sort", s.handlePutSort)
}

// Start listens, advertises the bound address in the info file and serves
// until ctx is done. The info file is removed on return.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.opts.Address, strconv.Itoa(s.opts.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	info := s.info(addr.Port)

	if s.opts.InfoFile != "" {
		if err := WriteInfo(s.opts.InfoFile, info); err != nil {
			ln.Close()
			return err
		}
		defer RemoveInfo(s.opts.InfoFile)
	}
	s.log.Info("http server listening", "name", info.Name, "url", info.BaseURL())

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		s.hub.closeAll()
		return err
	case <-ctx.Done():
	}

	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) info(port int) ServInfo {
	return ServInfo{Name: s.opts.Name, IP: s.opts.Address, Port: port, PID: os.Getpid()}
}

func (s *Server) handleServInfo(c *gin.Context) {
	port := s.opts.Port
	if addr, ok := c.Request.Context().Value(http.LocalAddrContextKey).(*net.TCPAddr); ok {
		port = addr.Port
	}
	c.JSON(http.StatusOK, s.info(port))
}

func (s *Server) handleNotify(c *gin.Context) {
	var n notify.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if n.Cmd != notify.CmdRefresh {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown command %q", n.Cmd)})
		return
	}
	n.Source = notify.SourceHTTP
	s.bus.Publish(n)
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "cmd": n.Cmd})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	snap := s.eng.Snapshot()
	h := s.eng.Highlight()
	s.hub.serve(c.Writer, c.Request, engine.Event{
		Type:       eventHello,
		Time:       time.Now(),
		Generation: snap.Generation,
		Highlight:  &h,
		Order:      orderNames(snap.Order),
	})
}

// Status summarizes the engine for the status command.
type Status struct {
	Name         string              `json:"name"`
	PID          int                 `json:"pid"`
	State        string              `json:"state"`
	Generation   uint64              `json:"generation"`
	FetchedAt    time.Time           `json:"fetched_at"`
	Loaded       bool                `json:"loaded"`
	Stale        bool                `json:"stale"`
	Processes    int                 `json:"processes"`
	Sockets      int                 `json:"sockets"`
	Nodes        int                 `json:"nodes"`
	Placeholders int                 `json:"placeholders"`
	CyclesBroken int                 `json:"cycles_broken"`
	LastError    string              `json:"last_error,omitempty"`
	Order        []string            `json:"order"`
	Selection    selection.Highlight `json:"selection"`
	Clients      int                 `json:"ws_clients"`
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.eng.Snapshot()
	stats := snap.Forest.Stats()
	st := Status{
		Name:         s.opts.Name,
		PID:          os.Getpid(),
		State:        refresh.Idle.String(),
		Generation:   snap.Generation,
		FetchedAt:    snap.FetchedAt,
		Loaded:       snap.Loaded,
		Stale:        snap.Stale,
		Processes:    len(snap.Records),
		Sockets:      len(snap.Sockets),
		Nodes:        stats.Nodes,
		Placeholders: stats.Placeholders,
		CyclesBroken: stats.CyclesBroken,
		Order:        orderNames(snap.Order),
		Selection:    s.eng.Highlight(),
		Clients:      s.hub.count(),
	}
	if s.state != nil {
		st.State = s.state.State().String()
	}
	if snap.LastError != nil {
		st.LastError = snap.LastError.Error()
	}
	c.JSON(http.StatusOK, st)
}

// ready writes 503 and returns nil while the views must not be shown.
func (s *Server) ready(c *gin.Context) *engine.Snapshot {
	snap := s.eng.Snapshot()
	if !snap.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"loading": true})
		return nil
	}
	return snap
}

func (s *Server) handleTable(c *gin.Context) {
	snap := s.ready(c)
	if snap == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": snap.Generation,
		"order":      orderNames(snap.Order),
		"rows":       snap.Views.Table.Rows(),
	})
}

func (s *Server) handleTree(c *gin.Context) {
	snap := s.ready(c)
	if snap == nil {
		return
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": snap.Generation,
		"count":      snap.Views.Tree.Len(),
		"items":      snap.Views.Tree.Items(offset, limit),
	})
}

func (s *Server) handleGraph(c *gin.Context) {
	snap := s.ready(c)
	if snap == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation": snap.Generation,
		"nodes":      snap.Views.Graph.Nodes,
		"edges":      snap.Views.Graph.Edges,
	})
}

func (s *Server) handleGetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Highlight())
}

type selectRequest struct {
	PID int `json:"pid" binding:"required,gt=0"`
}

func (s *Server) handlePutSelection(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.eng.Select(req.PID))
}

func (s *Server) handleDeleteSelection(c *gin.Context) {
	s.eng.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSelectedProcess(c *gin.Context) {
	rec, ok := s.eng.SelectedProcess()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no process selected"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type sortRequest struct {
	Keys []string `json:"keys"`
}

func (s *Server) handlePutSort(c *gin.Context) {
	var req sortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	keys, err := ordering.ParseKeys(req.Keys)
	if err == nil {
		err = s.eng.SetSortOrder(keys)
	}
	if errors.Is(err, ordering.ErrUnsupportedSortKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": orderNames(keys)})
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func orderNames(keys []ordering.Key) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return names
}
