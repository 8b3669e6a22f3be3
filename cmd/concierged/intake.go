package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/elC0mpa/ec2-concierge/service/orchestrator"
	"github.com/gin-gonic/gin"
)

// intakeServer accepts validated commands from the chat front end. The front
// end owns authentication and dialog handling; by the time a command arrives
// here the actor identity is trusted.
type intakeServer struct {
	addr         string
	orchestrator orchestrator.OrchestratorService
	logger       *slog.Logger
}

func newIntakeServer(addr string, orch orchestrator.OrchestratorService, logger *slog.Logger) *intakeServer {
	return &intakeServer{
		addr:         addr,
		orchestrator: orch,
		logger:       logger,
	}
}

func (s *intakeServer) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/v1/commands", s.handleCommand)
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func (s *intakeServer) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type commandResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *intakeServer) handleCommand(c *gin.Context) {
	var cmd model.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, commandResponse{Error: "malformed command"})
		return
	}
	if cmd.Actor == "" || cmd.Action == "" {
		c.JSON(http.StatusBadRequest, commandResponse{Error: "actor and action are required"})
		return
	}

	note, err := s.orchestrator.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		s.logger.Warn("command rejected", "action", cmd.Action, "actor", cmd.Actor, "error", err)
		c.JSON(statusFor(err), commandResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, commandResponse{Message: note.Message})
}

// statusFor maps the error taxonomy onto HTTP status codes so the front end
// can phrase its reply without parsing error strings.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrResourceConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrPolicyViolation), errors.Is(err, model.ErrNoKeyPair):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrDegraded), model.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
