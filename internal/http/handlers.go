package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/protocol"
)

func (h *Handler) signup(c *gin.Context) {
	var req protocol.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, protocol.Error{Error: "invalid request body"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err, "Failed to create user")
		return
	}
	h.issueSession(c, user.ID, "Failed to create user")
}

func (h *Handler) login(c *gin.Context) {
	var req protocol.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, protocol.Error{Error: "invalid request body"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err, "Failed to log in")
		return
	}
	h.issueSession(c, user.ID, "Failed to log in")
}

func (h *Handler) issueSession(c *gin.Context, userID int64, fallback string) {
	session, err := h.sessions.Issue(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, protocol.SessionResponse{SessionID: session.Token})
}

func (h *Handler) logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
			h.respondError(c, err, "Failed to log out")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) currentUser(c *gin.Context) {
	identity, _ := currentIdentity(c)
	user, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		if domain.IsNotFound(err) {
			c.JSON(http.StatusUnauthorized, protocol.Error{Error: "Authentication required"})
			return
		}
		h.respondError(c, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": protocol.User{ID: user.ID, Username: user.Username}})
}

func (h *Handler) listTimers(c *gin.Context) {
	identity, _ := currentIdentity(c)
	onlyActive := c.Query("active") == "true"

	views, err := h.timers.ListTimers(c.Request.Context(), identity.UserID, onlyActive)
	if err != nil {
		h.respondError(c, err, "Failed to fetch timers")
		return
	}
	c.JSON(http.StatusOK, protocol.FromViews(views))
}

func (h *Handler) createTimer(c *gin.Context) {
	identity, _ := currentIdentity(c)
	var req protocol.CreateTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, protocol.Error{Error: "invalid request body"})
		return
	}

	view, err := h.timers.StartTimer(c.Request.Context(), identity.UserID, req.Description)
	if err != nil {
		h.respondError(c, err, "Failed to create timer")
		return
	}
	c.JSON(http.StatusOK, protocol.FromView(*view))
}

func (h *Handler) stopTimer(c *gin.Context) {
	identity, _ := currentIdentity(c)
	id, ok := timerID(c)
	if !ok {
		return
	}

	view, err := h.timers.StopTimer(c.Request.Context(), identity.UserID, id)
	if err != nil {
		h.respondError(c, err, "Failed to stop timer")
		return
	}
	c.JSON(http.StatusOK, protocol.FromView(*view))
}

func (h *Handler) deleteTimer(c *gin.Context) {
	identity, _ := currentIdentity(c)
	id, ok := timerID(c)
	if !ok {
		return
	}

	if err := h.timers.DeleteTimer(c.Request.Context(), identity.UserID, id); err != nil {
		h.respondError(c, err, "Failed to delete timer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Timer deleted successfully"})
}

func (h *Handler) exportTimers(c *gin.Context) {
	identity, _ := currentIdentity(c)
	export, err := h.timers.ExportTimers(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err, "Failed to export timers")
		return
	}
	c.JSON(http.StatusOK, protocol.ExportResponse{Location: export.Location, URL: export.URL})
}

func (h *Handler) listExports(c *gin.Context) {
	identity, _ := currentIdentity(c)
	objects, err := h.timers.ListExports(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, err, "Failed to list exports")
		return
	}

	resp := make([]protocol.ExportObject, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

// timerID parses :id, writing a 400 when it is not a positive integer.
func timerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, protocol.Error{Error: "invalid timer id"})
		return 0, false
	}
	return id, true
}

