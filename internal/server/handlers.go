// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pdiddy/research-chat/internal/chat"
	"github.com/pdiddy/research-chat/internal/fetch"
	"github.com/pdiddy/research-chat/internal/index"
	"github.com/pdiddy/research-chat/internal/pipeline"
	"github.com/pdiddy/research-chat/internal/sessions"
	"github.com/pdiddy/research-chat/pkg/types"
)

type createRequest struct {
	Topic string `json:"topic"`

	// SessionID, when it names a live session, is replaced by the new
	// topic instead of registering another session.
	SessionID string `json:"session_id,omitempty"`
}

type sessionResponse struct {
	SessionID string                   `json:"session_id"`
	Topic     string                   `json:"topic"`
	Documents int                      `json:"documents"`
	Sources   []types.DocumentMetadata `json:"sources"`
	History   string                   `json:"history,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`

	// AnswerHTML is Answer rendered from markdown and sanitized.
	AnswerHTML string                   `json:"answer_html"`
	Question   string                   `json:"question"`
	Sources    []types.DocumentMetadata `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreate(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, pipeline.ErrEmptyTopic.Error())
	}

	res, err := s.builder.Build(c.Request().Context(), req.Topic)
	if err != nil {
		return err
	}

	id := req.SessionID
	if id == "" {
		if cookie, err := c.Cookie(SessionCookie); err == nil {
			id = cookie.Value
		}
	}

	var entry *sessions.Entry
	if _, err := s.registry.Get(id); id != "" && err == nil {
		entry = s.registry.Replace(id, res)
	} else {
		entry = s.registry.Put(res)
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    entry.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusCreated, sessionResponse{
		SessionID: entry.ID,
		Topic:     res.Topic,
		Documents: len(res.Documents),
		Sources:   res.Sources(),
	})
}

func (s *Server) handleGet(c echo.Context) error {
	entry, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return err
	}
	res := entry.Result
	return c.JSON(http.StatusOK, sessionResponse{
		SessionID: entry.ID,
		Topic:     res.Topic,
		Documents: len(res.Documents),
		Sources:   res.Sources(),
		History:   res.Session.Memory().History(),
	})
}

func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	entry, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return err
	}

	ans, err := entry.Result.Session.Ask(c.Request().Context(), req.Question)
	if err != nil {
		return err
	}
	html, err := renderMarkdown(ans.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "rendering answer failed").SetInternal(err)
	}
	return c.JSON(http.StatusOK, askResponse{
		Answer:     ans.Text,
		AnswerHTML: html,
		Question:   ans.Question,
		Sources:    ans.Sources,
	})
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.registry.Delete(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// statusFor maps domain errors to HTTP status codes. Anything not
// recognized came from an external service.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyTopic),
		errors.Is(err, chat.ErrEmptyQuestion),
		errors.Is(err, fetch.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, index.ErrEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
