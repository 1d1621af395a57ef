package handlers

import (
	"github.com/gin-gonic/gin"

	"pairchat/utils"
)

func (h *Handler) GetOnlineUsers(c *gin.Context) {
	utils.Success(c, h.Registry.OnlineUsers())
}
