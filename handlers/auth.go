package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pairchat/middleware"
	"pairchat/models"
	"pairchat/service"
	"pairchat/utils"
)

const sessionCookie = "jwt"

type SignupRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type AuthResponse struct {
	Token string               `json:"token"`
	User  *models.UserResponse `json:"user"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request body")
		return
	}

	user, err := h.Accounts.Signup(c.Request.Context(), service.SignupInput{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		utils.Error(c, err)
		return
	}

	token, err := h.issueSession(c, user.ID)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Created(c, AuthResponse{Token: token, User: user.ToResponse()})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "email and password are required")
		return
	}

	user, err := h.Accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.Error(c, err)
		return
	}

	token, err := h.issueSession(c, user.ID)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, AuthResponse{Token: token, User: user.ToResponse()})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", h.SecureCookies, true)
	utils.Success(c, gin.H{"message": "logged out"})
}

func (h *Handler) CheckAuth(c *gin.Context) {
	user, err := h.Accounts.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, user.ToResponse())
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request body")
		return
	}

	image, err := decodeImage("profilePic", req.ProfilePic)
	if err != nil {
		utils.Error(c, err)
		return
	}

	user, err := h.Accounts.UpdateProfilePic(c.Request.Context(), middleware.GetUserID(c), image)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, user.ToResponse())
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "invalid request body")
		return
	}

	if err := h.Accounts.ChangePassword(c.Request.Context(), middleware.GetUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, gin.H{"message": "password updated"})
}

func (h *Handler) issueSession(c *gin.Context, userID string) (string, error) {
	token, err := h.Tokens.Generate(userID)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, token, int(h.Tokens.TTL.Seconds()), "/", "", h.SecureCookies, true)
	return token, nil
}
