// Package server exposes the WhatsApp webhook over HTTP: verification
// handshake, signed message deliveries and a pending-job debug view.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/recordabot/recorda/internal/profile"
	"github.com/recordabot/recorda/plugin/whatsapp"
	"github.com/recordabot/recorda/server/internal/observability"
	"github.com/recordabot/recorda/server/middleware"
	"github.com/recordabot/recorda/server/scheduler"
)

// maxConcurrentMessages bounds how many inbound messages are processed
// at once; each one may hold an LLM round trip open.
const maxConcurrentMessages = 8

// MessageHandler produces the reply for one inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, message string, phone string) string
}

// ReplySender delivers the reply back to the caller.
type ReplySender interface {
	Deliver(ctx context.Context, recipient string, text string) error
}

// Server is the webhook HTTP server.
type Server struct {
	Profile   *profile.Profile
	Scheduler *scheduler.Scheduler

	handler MessageHandler
	sender  ReplySender
	limiter *middleware.CallerLimiter
	sem     *semaphore.Weighted

	echoServer *echo.Echo
	logger     *slog.Logger
}

// NewServer creates the webhook server and registers its routes.
func NewServer(prof *profile.Profile, sched *scheduler.Scheduler, handler MessageHandler, sender ReplySender) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomiddleware.Recover())

	s := &Server{
		Profile:    prof,
		Scheduler:  sched,
		handler:    handler,
		sender:     sender,
		limiter:    middleware.NewCallerLimiter(1, 5),
		sem:        semaphore.NewWeighted(maxConcurrentMessages),
		echoServer: e,
		logger:     slog.Default(),
	}

	e.GET("/healthz", s.healthz)
	e.GET("/webhook", s.verifyWebhook)
	e.POST("/webhook", s.receiveWebhook)
	e.GET("/debug/jobs", s.listJobs)

	return s
}

// Start begins serving on the profile's address. It blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	s.logger.Info("webhook server listening", "addr", addr)
	if err := s.echoServer.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echoServer.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// verifyWebhook answers the Cloud API subscription handshake: echo the
// challenge back when the verify token matches.
func (s *Server) verifyWebhook(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "" || token == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "error", "message": "Missing parameters"})
	}
	if mode != "subscribe" || token != s.Profile.WhatsAppVerifyToken {
		s.logger.Warn("webhook verification failed", "mode", mode)
		return c.JSON(http.StatusForbidden, map[string]string{"status": "error", "message": "Verification failed"})
	}

	s.logger.Info("webhook verified")
	return c.String(http.StatusOK, challenge)
}

// receiveWebhook handles one signed delivery. Status updates are
// acknowledged without processing; text messages are dispatched to the
// message handler and the reply is sent back to the caller.
func (s *Server) receiveWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "error", "message": "Invalid body"})
	}

	if !whatsapp.ValidateSignature(body, c.Request().Header.Get(whatsapp.SignatureHeader), s.Profile.WhatsAppAppSecret) {
		s.logger.Warn("webhook signature mismatch")
		return c.JSON(http.StatusForbidden, map[string]string{"status": "error", "message": "Invalid signature"})
	}

	payload, err := whatsapp.ParsePayload(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "error", "message": "Invalid JSON provided"})
	}

	if payload.IsStatusUpdate() {
		s.logger.Debug("received status update")
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	msg, ok := payload.FirstTextMessage()
	if !ok {
		if payload.IsValidMessage() {
			// Non-text media is acknowledged with a hint instead of an error.
			s.reply(c.Request().Context(), payload.Entry[0].Changes[0].Value.Messages[0].From,
				"⚠️ Solo entiendo mensajes de texto por ahora.")
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
		return c.JSON(http.StatusNotFound, map[string]string{"status": "error", "message": "Not a WhatsApp API event"})
	}

	if !s.limiter.Allow(msg.From) {
		s.logger.Warn("caller rate limited", "from", msg.From)
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	ctx := c.Request().Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "Busy"})
	}
	defer s.sem.Release(1)

	msgCtx := observability.NewMessageContext(s.logger, msg.From)
	msgCtx.Received(len(msg.Body))

	reply := s.handler.Handle(ctx, msg.Body, msg.From)
	s.reply(ctx, msg.From, reply)

	msgCtx.Completed(len(reply))

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) reply(ctx context.Context, recipient string, text string) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.sender.Deliver(ctx, recipient, text); err != nil {
		s.logger.Error("failed to deliver reply", "recipient", recipient, "error", err)
	}
}

// listJobs exposes the scheduler's pending set for observability.
func (s *Server) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"jobs": s.Scheduler.ListPending(),
	})
}
