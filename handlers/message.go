package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pairchat/middleware"
	"pairchat/models"
	"pairchat/service"
	"pairchat/utils"
)

type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (h *Handler) GetSidebar(c *gin.Context) {
	entries, err := h.Unread.Sidebar(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, entries)
}

func (h *Handler) GetUnreadCounts(c *gin.Context) {
	counts, err := h.Unread.Snapshot(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, counts)
}

func (h *Handler) GetMessages(c *gin.Context) {
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			utils.Error(c, models.NewValidationError(map[string]string{"before": "must be an RFC3339 timestamp"}))
			return
		}
		before = t
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.Error(c, models.NewValidationError(map[string]string{"limit": "must be a positive integer"}))
			return
		}
		limit = n
	}

	msgs, err := h.Delivery.Conversation(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), before, limit)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, msgs)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request body")
		return
	}

	image, err := decodeImage("image", req.Image)
	if err != nil {
		utils.Error(c, err)
		return
	}

	msg, err := h.Delivery.Send(c.Request.Context(), service.SendInput{
		SenderID:   middleware.GetUserID(c),
		ReceiverID: c.Param("id"),
		Text:       req.Text,
		Image:      image,
	})
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Created(c, msg)
}

func (h *Handler) MarkSeen(c *gin.Context) {
	n, err := h.Delivery.MarkSeen(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, gin.H{"updated": n})
}
