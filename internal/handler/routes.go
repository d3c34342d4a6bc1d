package handler

import (
	"github.com/dealdesk/dealdesk-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth          *AuthHandler
	Workspace     *WorkspaceHandler
	Member        *MemberHandler
	Invite        *InviteHandler
	Deal          *DealHandler
	Notification  *NotificationHandler
	WebSocket     *WebSocketHandler
	InviteLimiter *middleware.RateLimiter
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, resolver middleware.ActorResolver, h Handlers) {
	// API version 1
	api := e.Group("/api/v1")
	authenticated := authMiddleware.Authenticate()
	workspace := middleware.RequireWorkspace(resolver)

	// Auth routes (protected)
	auth := api.Group("/auth")
	auth.Use(authenticated)
	auth.POST("/callback", h.Auth.Callback)
	auth.GET("/me", h.Auth.Me)
	auth.POST("/logout", h.Auth.Logout)

	// Invite links are opened before the caller belongs to the workspace
	invites := api.Group("/invites")
	invites.Use(authenticated)
	invites.GET("/:token", h.Invite.GetInvite)
	invites.POST("/:token/accept", h.Invite.AcceptInvite)

	// Notification routes (protected, across workspaces)
	notifications := api.Group("/notifications")
	notifications.Use(authenticated)
	notifications.GET("", h.Notification.ListNotifications)
	notifications.POST("/read-all", h.Notification.MarkAllRead)
	notifications.POST("/:id/read", h.Notification.MarkRead)

	// Workspace routes (protected, scoped by X-Workspace-ID)
	ws := api.Group("/workspace")
	ws.Use(authenticated, workspace)
	ws.GET("", h.Workspace.GetWorkspace)
	ws.PATCH("", h.Workspace.RenameWorkspace)
	ws.POST("/logo", h.Workspace.UploadLogo)
	ws.GET("/members", h.Member.ListMembers)
	ws.DELETE("/members/:userId", h.Member.RemoveMember)
	ws.PATCH("/members/:userId", h.Member.ChangeRole)
	ws.GET("/invites", h.Invite.ListPendingInvites)
	if h.InviteLimiter != nil {
		ws.POST("/invites", h.Invite.CreateInvite, middleware.RateLimitMiddleware(h.InviteLimiter))
	} else {
		ws.POST("/invites", h.Invite.CreateInvite)
	}

	// Deal routes (protected, scoped by X-Workspace-ID)
	deals := api.Group("/deals")
	deals.Use(authenticated, workspace)
	deals.GET("/board", h.Deal.GetBoard)
	deals.POST("", h.Deal.CreateDeal)
	deals.GET("/:id", h.Deal.GetDeal)
	deals.PATCH("/:id", h.Deal.UpdateDeal)
	deals.POST("/:id/move", h.Deal.MoveDeal)
	deals.DELETE("/:id", h.Deal.DeleteDeal)
	deals.GET("/:id/transitions", h.Deal.ListTransitions)

	// WebSocket authenticates through its token query parameter
	if h.WebSocket != nil {
		e.GET("/ws", h.WebSocket.HandleWS)
	}
}
