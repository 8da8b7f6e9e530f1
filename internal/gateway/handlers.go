package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/session"
)

const errCommandNotAllowed = "Command not allowed via direct API. Use the chat interface for transaction commands."

type pageData struct {
	Authenticated  bool
	MaxInputLength int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, err := s.sessionFrom(r)
	data := pageData{
		Authenticated:  err == nil,
		MaxInputLength: s.cfg.MaxInputLength,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("render chat page", zap.Error(err))
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	ip := clientIP(r)

	if !s.checkPassword(req.Password) {
		if s.metrics != nil {
			s.metrics.LoginFailures.Inc()
		}
		s.audit.LogLogin(r.Context(), "", ip, false)
		s.logger.Warn("login failed", zap.String("client", ip))
		respondError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	// A fresh id on every login; any previous session is dropped.
	if old, err := s.sessionFrom(r); err == nil {
		s.sessions.Delete(old.ID)
	}
	sess := s.sessions.Create()
	s.setSessionCookie(w, sess.ID)
	s.audit.LogLogin(r.Context(), sess.ID, ip, true)
	s.logger.Info("login", zap.String("session", sess.ID), zap.String("client", ip))
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.sessionFrom(r); err == nil {
		s.sessions.Delete(sess.ID)
		s.audit.LogLogout(r.Context(), sess.ID, clientIP(r))
	}
	s.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string   `json:"response"`
	Provider llm.Info `json:"provider"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondError(w, http.StatusBadRequest, "Message required")
		return
	}
	if !s.withinLimit(message) {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Message too long (max %d characters)", s.cfg.MaxInputLength))
		return
	}

	// The turn completes even if the client goes away so history stays
	// consistent with the commands that ran.
	ctx := context.WithoutCancel(r.Context())
	a := sess.Agent()
	reply, err := a.Chat(ctx, message)
	if err != nil {
		info := a.Info()
		s.audit.LogChatError(ctx, info.Provider, info.Model, err)
		s.logger.Error("chat failed", zap.String("session", sess.ID), zap.Error(err))
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{Response: reply, Provider: a.Info()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Agent().Reset()
	s.audit.LogReset(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req commandRequest
	if !s.decode(w, r, &req) {
		return
	}
	command := strings.TrimSpace(req.Command)
	if command == "" {
		respondError(w, http.StatusBadRequest, "Command required")
		return
	}
	if !s.withinLimit(command) {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Command too long (max %d characters)", s.cfg.MaxInputLength))
		return
	}
	if !IsSafeCommand(command) {
		s.audit.LogCommandDenied(r.Context(), command, clientIP(r))
		s.logger.Warn("direct command refused",
			zap.String("session", sess.ID),
			zap.String("command", strings.Fields(command)[0]),
		)
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":  errCommandNotAllowed,
			"status": false,
		})
		return
	}

	start := time.Now()
	result := s.executor.Execute(r.Context(), command)
	s.logger.Debug("direct command",
		zap.String("session", sess.ID),
		zap.Bool("status", result.Status),
		zap.Duration("duration", time.Since(start)),
	)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleProvider(w http.ResponseWriter, _ *http.Request, _ *session.Session) {
	respondJSON(w, http.StatusOK, s.info)
}

// decode reads a JSON body into v. An empty body leaves v zero. It writes
// the error response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	respondError(w, http.StatusBadRequest, "Invalid JSON body")
	return false
}

func (s *Server) withinLimit(text string) bool {
	return s.cfg.MaxInputLength <= 0 || utf8.RuneCountInString(text) <= s.cfg.MaxInputLength
}
