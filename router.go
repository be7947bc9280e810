package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weavechat/weavechat/pkg/blob"
	"github.com/weavechat/weavechat/pkg/config"
	"github.com/weavechat/weavechat/pkg/db"
	"github.com/weavechat/weavechat/pkg/engine"
	"github.com/weavechat/weavechat/pkg/event"
	"github.com/weavechat/weavechat/pkg/handler"
	"github.com/weavechat/weavechat/pkg/service"
	"github.com/weavechat/weavechat/pkg/utils"
)

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.AppConfig
	logger    *slog.Logger
	port      int
}

func NewServer(cfg *config.AppConfig) (*Server, error) {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow common localhost dev origins.
	// Note: if you don't need cookies/credentials, keep Allow-Credentials off.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		logger:    utils.GetLogger(),
	}

	if err := server.SetupRoutes(); err != nil {
		return nil, err
	}
	return server, nil
}

func (s *Server) SetupRoutes() error {
	dataDir := s.cfg.DataDir()

	gdb, err := db.Open(filepath.Join(dataDir, "weavechat.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	blobs, err := blob.NewStore(filepath.Join(dataDir, "attachments"))
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	// The in-process engine keeps the server usable without an external
	// execution engine deployment.
	eng := engine.NewLocal()

	chatService := service.NewChatService(gdb, blobs, eng, s.cfg.HistoryBudgetBytes())
	chatHandler := handler.NewChatHandler(chatService)
	wsHandler := event.NewWSHandler()

	apiGroup := s.ginEngine.Group("/api/v1")
	chatHandler.RegisterRoutes(apiGroup)

	// Event notification WebSocket
	// /api/v1/events/ws?events=chat.streamChunk,chat.messageStatus&session=xxx
	apiGroup.GET("/events/ws", wsHandler.Handle)

	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return nil
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), s.cfg.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen first; if the port is occupied return immediately.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}
	s.logger.Info("Server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}
