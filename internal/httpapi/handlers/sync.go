package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emirg23/multi-BotChat/internal/common"
)

// SyncNow saves the session and pushes it synchronously.
func (h *Handler) SyncNow(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	report, err := s.Save(c.Request.Context())
	if err != nil {
		failErr(c, "SyncNow", err)
		return
	}
	common.OK(c, gin.H{
		"writes":        report.Writes,
		"deletes":       report.Deletes,
		"skipped_chats": len(report.SkippedChats),
		"list_failures": len(report.ListFailures),
	})
}

// SyncAsync persists the session locally and queues a push job for the worker.
func (h *Handler) SyncAsync(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if h.Queue == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "sync queue unavailable")
		return
	}
	// the worker pushes the persisted copy
	if err := s.Persist(c.Request.Context()); err != nil {
		log.Printf("[SyncAsync] Persist failed account=%s err=%v", s.Account(), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j, err := h.Jobs.Create(c.Request.Context(), s.Account())
	if err != nil {
		log.Printf("[SyncAsync] CreateJob failed account=%s err=%v", s.Account(), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if err := h.Queue.PublishSyncJob(c.Request.Context(), j.ID, j.Account); err != nil {
		log.Printf("[SyncAsync] PublishSyncJob failed account=%s job_id=%s err=%v", s.Account(), j.ID, err)
		_ = h.Jobs.MarkFailed(c.Request.Context(), j.ID, "enqueue failed: "+err.Error())
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}
	common.OK(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetSyncJob(c *gin.Context) {
	account, ok := accountFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	j, err := h.Jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.Account != normalizeEmail(account) {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}
	common.OK(c, gin.H{
		"job": gin.H{
			"id":         j.ID,
			"status":     j.Status,
			"writes":     j.Writes,
			"deletes":    j.Deletes,
			"error":      j.Error,
			"created_at": j.CreatedAt,
			"updated_at": j.UpdatedAt,
		},
	})
}

// SyncPull re-runs the login pull for the caller.
func (h *Handler) SyncPull(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	report, err := s.Pull(c.Request.Context())
	if err != nil {
		failErr(c, "SyncPull", err)
		return
	}
	common.OK(c, gin.H{
		"chats":         len(s.Chats()),
		"bots":          len(s.Bots()),
		"list_failures": len(report.ListFailures),
		"malformed":     report.Malformed,
	})
}
