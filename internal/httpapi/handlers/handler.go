package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emirg23/multi-BotChat/internal/app"
	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/common"
	"github.com/emirg23/multi-BotChat/internal/config"
	"github.com/emirg23/multi-BotChat/internal/httpapi/middleware"
	"github.com/emirg23/multi-BotChat/internal/mirror"
	"github.com/emirg23/multi-BotChat/internal/session"
)

// SyncQueue enqueues asynchronous pushes.
type SyncQueue interface {
	PublishSyncJob(ctx context.Context, jobID, account string) error
}

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Sessions *session.Manager
	Jobs     *session.JobRepo
	Queue    SyncQueue
}

// NewHandler builds handlers over the shared services. A nil queue disables
// POST /sync/async.
func NewHandler(a *app.App, q SyncQueue) *Handler {
	return &Handler{
		DB:       a.DB,
		Cfg:      a.Cfg,
		Sessions: a.Sessions,
		Jobs:     a.Jobs,
		Queue:    q,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func accountFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.EmailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok && email != ""
}

// session opens the caller's session or writes the failure response.
func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	account, ok := accountFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return nil, false
	}
	s, err := h.Sessions.Open(c.Request.Context(), account)
	if err != nil {
		log.Printf("[session] open failed account=%s err=%v", account, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return nil, false
	}
	return s, true
}

// failErr maps domain errors onto the response envelope.
func failErr(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, chat.ErrChatNotFound):
		common.Fail(c, http.StatusNotFound, 40410, "chat not found")
	case errors.Is(err, chat.ErrVariantNotFound):
		common.Fail(c, http.StatusNotFound, 40411, "bot variant not found")
	case errors.Is(err, chat.ErrUnknownFamily):
		common.Fail(c, http.StatusBadRequest, 10030, "unknown bot")
	case errors.Is(err, chat.ErrInvalidPrompt):
		common.Fail(c, http.StatusBadRequest, 10031, err.Error())
	case errors.Is(err, session.ErrBaseVariant):
		common.Fail(c, http.StatusBadRequest, 10032, "base bots cannot be deleted")
	case errors.Is(err, session.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10033, "message required")
	case errors.Is(err, chat.ErrVariantExists):
		common.Fail(c, http.StatusConflict, 40901, "prompt name already used")
	case errors.Is(err, chat.ErrNothingToRegenerate):
		common.Fail(c, http.StatusConflict, 40902, "last message is not a bot answer")
	case errors.Is(err, mirror.ErrRemoteList):
		log.Printf("[%s] remote listing failed err=%v", op, err)
		common.Fail(c, http.StatusBadGateway, 50201, "remote store unavailable")
	case errors.Is(err, session.ErrSyncFailed), errors.Is(err, mirror.ErrRemoteCommit):
		log.Printf("[%s] sync failed err=%v", op, err)
		common.Fail(c, http.StatusBadGateway, 50202, "sync failed")
	default:
		log.Printf("[%s] failed err=%v", op, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

// syncOutcome separates a failed save from the operation's own error: the local
// change already happened, so the caller still reports success with synced=false.
func syncOutcome(op string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, session.ErrSyncFailed) {
		log.Printf("[%s] save failed err=%v", op, err)
		return false, nil
	}
	return false, err
}
