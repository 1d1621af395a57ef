package handlers

import (
	"github.com/gin-gonic/gin"

	"pairchat/middleware"
	"pairchat/utils"
)

type FriendRequestBody struct {
	RecipientID string `json:"recipientId"`
}

func (h *Handler) SearchUsers(c *gin.Context) {
	results, err := h.Ledger.Search(c.Request.Context(), middleware.GetUserID(c), c.Query("q"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, results)
}

func (h *Handler) GetFriendRequests(c *gin.Context) {
	requests, err := h.Ledger.IncomingRequests(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, requests)
}

func (h *Handler) GetFriends(c *gin.Context) {
	friends, err := h.Ledger.Friends(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, friends)
}

func (h *Handler) SendFriendRequest(c *gin.Context) {
	var req FriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request body")
		return
	}

	f, err := h.Ledger.Request(c.Request.Context(), middleware.GetUserID(c), req.RecipientID)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Created(c, f)
}

func (h *Handler) AcceptFriendRequest(c *gin.Context) {
	f, err := h.Ledger.Accept(c.Request.Context(), middleware.GetUserID(c), c.Param("friendshipId"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, f)
}

func (h *Handler) RejectFriendRequest(c *gin.Context) {
	f, err := h.Ledger.Reject(c.Request.Context(), middleware.GetUserID(c), c.Param("friendshipId"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, f)
}

func (h *Handler) RemoveFriend(c *gin.Context) {
	if err := h.Ledger.Remove(c.Request.Context(), middleware.GetUserID(c), c.Param("friendId")); err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, gin.H{"message": "friend removed"})
}
