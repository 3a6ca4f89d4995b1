package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/common"
	"github.com/emirg23/multi-BotChat/internal/session"
)

// ListChats returns the caller's chats grouped by last activity.
func (h *Handler) ListChats(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	groups := s.Groups(time.Now())
	if groups == nil {
		groups = []chat.ChatGroup{}
	}
	common.OK(c, gin.H{"groups": groups})
}

func (h *Handler) GetChat(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ch, err := s.Chat(c.Param("id"))
	if err != nil {
		failErr(c, "GetChat", err)
		return
	}
	common.OK(c, gin.H{"chat": ch})
}

type sendMessageReq struct {
	Bot        string `json:"bot" binding:"required"`
	PromptName string `json:"prompt_name"`
	ChatID     string `json:"chat_id"`
	Message    string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	k := chat.VariantKey{Family: req.Bot, PromptName: req.PromptName}
	ex, err := s.Send(c.Request.Context(), k, req.ChatID, req.Message)
	h.writeExchange(c, "SendChatMessage", ex, err)
}

func (h *Handler) RegenerateChat(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	ex, err := s.Regenerate(c.Request.Context(), c.Param("id"))
	h.writeExchange(c, "RegenerateChat", ex, err)
}

// writeExchange reports a stored exchange as success even when the provider or
// the save failed; those outcomes are flagged in the payload.
func (h *Handler) writeExchange(c *gin.Context, op string, ex *session.Exchange, err error) {
	if ex == nil {
		failErr(c, op, err)
		return
	}
	synced := !errors.Is(err, session.ErrSyncFailed)
	if err != nil {
		log.Printf("[%s] chat_id=%s degraded err=%v", op, ex.Chat.ID, err)
	}
	common.OK(c, gin.H{
		"chat_id":  ex.Chat.ID,
		"chat":     ex.Chat,
		"user":     ex.User,
		"reply":    ex.Reply,
		"fallback": ex.Fallback,
		"synced":   synced,
	})
}

func (h *Handler) DeleteChat(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	synced, err := syncOutcome("DeleteChat", s.DeleteChat(c.Request.Context(), c.Param("id")))
	if err != nil {
		failErr(c, "DeleteChat", err)
		return
	}
	common.OK(c, gin.H{"synced": synced})
}
