package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/common"
)

type botFamily struct {
	Name     string            `json:"name"`
	Variants []chat.BotVariant `json:"variants"`
}

// ListBots groups the catalogue by family in catalogue order.
func (h *Handler) ListBots(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	cat := chat.NewCatalogue(s.Bots()...)
	out := make([]botFamily, 0)
	for _, f := range cat.Families() {
		out = append(out, botFamily{Name: f, Variants: cat.Variants(f)})
	}
	common.OK(c, gin.H{"bots": out})
}

type createPromptReq struct {
	Bot       string   `json:"bot"`
	Name      string   `json:"name"`
	Sentences []string `json:"sentences"`
}

func (h *Handler) CreatePrompt(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req createPromptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	v, err := s.CreatePrompt(c.Request.Context(), req.Bot, req.Name, req.Sentences)
	synced, err := syncOutcome("CreatePrompt", err)
	if err != nil {
		failErr(c, "CreatePrompt", err)
		return
	}
	common.OK(c, gin.H{"variant": v, "synced": synced})
}

// DeleteVariant removes the prompt variant named by the "prompt" query parameter
// together with its chats.
func (h *Handler) DeleteVariant(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	k := chat.VariantKey{Family: c.Param("family"), PromptName: c.Query("prompt")}
	n, err := s.DeleteVariant(c.Request.Context(), k)
	synced, err := syncOutcome("DeleteVariant", err)
	if err != nil {
		failErr(c, "DeleteVariant", err)
		return
	}
	common.OK(c, gin.H{"deleted_chats": n, "synced": synced})
}
