package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/service"
	"github.com/stemsi/tryout-backend/internal/session"
	ws "github.com/stemsi/tryout-backend/internal/websocket"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// outboxSize bounds the events queued for one connection's writer.
const outboxSize = 64

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves participant workspaces over WebSocket.
type WSHandler struct {
	examService    *service.ExamService
	sessionService *service.ExamSessionService
	registry       *session.Registry
	clock          clock.WithTicker
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	examService *service.ExamService,
	sessionService *service.ExamSessionService,
	registry *session.Registry,
	clk clock.WithTicker,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		examService:    examService,
		sessionService: sessionService,
		registry:       registry,
		clock:          clk,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionWorkspace godoc
// WS /ws/v1/tryout/sessions/:session_id
// Upgrades to WebSocket and streams the countdown, answer sync, automatic
// submission and navigation of one exam session.
func (h *WSHandler) SessionWorkspace(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	sess, err := h.sessionService.GetSession(ctx, claims.UserID, sessionID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	paper, err := h.examService.Paper(ctx, sess.ExamID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", claims.UserID.String()).
		Str("session_id", sessionID.String()).
		Logger()

	connCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before the fresh read so no snapshot falls in between.
	pubsub := h.sessionService.Subscribe(connCtx, sessionID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(connCtx); err != nil {
		wsLog.Warn().Err(err).Msg("Session channel unavailable, continuing without cross-device sync")
	}
	if fresh, err := h.sessionService.GetSession(connCtx, claims.UserID, sessionID); err == nil {
		sess = fresh
	}

	// gorilla/websocket allows one concurrent writer: everything goes
	// through outbox.
	outbox := make(chan any, outboxSize)
	g, gctx := errgroup.WithContext(connCtx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-outbox:
				if err := ws.WriteTyped(conn, msg); err != nil {
					// Unblocks the read loop.
					conn.Close()
					return err
				}
			}
		}
	})

	emitter := session.EmitterFunc(func(e session.Event) {
		select {
		case outbox <- ws.ResponsePayload{Event: ws.Event(e.Type), Data: e.Payload}:
		case <-gctx.Done():
		}
	})

	workspace := session.Open(h.registry, h.sessionService, claims.UserID, paper, sess, emitter, session.Options{
		Clock:  h.clock,
		Logger: wsLog,
	})
	metrics.OpenWorkspaces.Inc()
	defer func() {
		workspace.Close()
		metrics.OpenWorkspaces.Dec()
	}()

	g.Go(func() error {
		h.relaySnapshots(gctx, pubsub.Channel(), wsLog)
		return nil
	})

	wsLog.Info().Msg("Workspace opened")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		if gctx.Err() != nil {
			break
		}
		h.dispatch(gctx, workspace, &msg, outbox, wsLog)
	}

	cancel()
	if err := g.Wait(); err != nil {
		wsLog.Debug().Err(err).Msg("Writer stopped")
	}
	wsLog.Info().Msg("Workspace closed")
}

func (h *WSHandler) dispatch(ctx context.Context, w *session.Workspace, msg *ws.RequestPayload, outbox chan<- any, log zerolog.Logger) {
	reply := func(p any) {
		select {
		case outbox <- p:
		case <-ctx.Done():
		}
	}
	fail := func(text string) {
		reply(ws.ErrorResponse{Event: ws.EventError, Error: text})
	}

	switch msg.Action {
	case ws.ActionAnswer:
		qid, err := msg.QuestionID()
		if err != nil {
			fail("invalid q_id format")
			return
		}
		oid, err := msg.Option()
		if err != nil {
			fail("invalid option_id format")
			return
		}
		// Failures reach the client as notices.
		_ = w.Answer(ctx, qid, oid)

	case ws.ActionClear:
		qid, err := msg.QuestionID()
		if err != nil {
			fail("invalid q_id format")
			return
		}
		_ = w.Clear(ctx, qid)

	case ws.ActionGoto:
		if msg.Index == nil {
			fail("index is required")
			return
		}
		w.Goto(*msg.Index)

	case ws.ActionNext:
		w.Next()

	case ws.ActionPrev:
		w.Prev()

	case ws.ActionSubmit:
		if _, err := w.Submit(ctx); err != nil && !isExpectedCompletionError(err) {
			log.Error().Err(err).Msg("Submit failed")
		}

	case ws.ActionRefresh:
		paper, err := h.examService.Paper(ctx, w.Session().ExamID)
		if err != nil {
			log.Error().Err(err).Msg("Paper refetch failed")
			fail("refresh failed")
			return
		}
		w.Refresh(paper)

	case ws.ActionPing:
		reply(ws.ResponsePayload{Event: ws.EventPong})

	default:
		log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		fail("unknown action: " + string(msg.Action))
	}
}

// relaySnapshots applies snapshots published by other processes (or other
// connections) to the shared session cache.
func (h *WSHandler) relaySnapshots(ctx context.Context, ch <-chan *redis.Message, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			snap, err := service.DecodeSnapshot(m.Payload)
			if err != nil {
				log.Warn().Err(err).Msg("Dropping malformed snapshot")
				continue
			}
			h.apply(snap)
		}
	}
}

func (h *WSHandler) apply(snap *service.SessionSnapshot) {
	cache := h.registry.Lookup(snap.Session.ID)
	if cache == nil {
		return
	}
	if snap.Result == nil {
		cache.Observe(snap.Session)
		return
	}
	if res, _ := cache.Result(); res == nil {
		cache.Finish(snap.Session, snap.Result, session.ResultPath(snap.Session.ExamID, snap.Session.ID))
	}
}

func isExpectedCompletionError(err error) bool {
	return errors.Is(err, session.ErrCompletionPending) ||
		errors.Is(err, model.ErrSessionNotInProgress)
}
