package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/domain"
)

type roomHandlers struct {
	rooms *app.RoomRegistry
}

type CreateRoomRequest struct {
	Name               string `json:"name" binding:"required,max=64"`
	WaitingRoomEnabled bool   `json:"waitingRoomEnabled"`
	RecordingEnabled   bool   `json:"recordingEnabled"`
}

type ModeratorRequest struct {
	UserID domain.UserID `json:"userId" binding:"required"`
}

func (h *roomHandlers) list(c *gin.Context) {
	rooms, err := h.rooms.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if rooms == nil {
		rooms = []*domain.Room{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *roomHandlers) create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room request"})
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), app.CreateRoomOptions{
		Name:               req.Name,
		HostID:             currentUser(c),
		WaitingRoomEnabled: req.WaitingRoomEnabled,
		RecordingEnabled:   req.RecordingEnabled,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room.ID)).Str("host", string(room.HostID)).Msg("room created")
	c.JSON(http.StatusCreated, room)
}

func (h *roomHandlers) get(c *gin.Context) {
	room, err := h.rooms.Lookup(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *roomHandlers) deactivate(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	if !h.requireHost(c, id) {
		return
	}
	room, err := h.rooms.Deactivate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *roomHandlers) addModerator(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	var req ModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID.Validate() != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if !h.requireHost(c, id) {
		return
	}
	room, err := h.rooms.AddModerator(c.Request.Context(), id, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *roomHandlers) removeModerator(c *gin.Context) {
	id := domain.RoomID(c.Param("id"))
	if !h.requireHost(c, id) {
		return
	}
	room, err := h.rooms.RemoveModerator(c.Request.Context(), id, domain.UserID(c.Param("userId")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// requireHost writes the error response itself and reports whether the
// caller hosts the room. HostID never changes, so the check cannot go stale.
func (h *roomHandlers) requireHost(c *gin.Context, id domain.RoomID) bool {
	room, err := h.rooms.Lookup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return false
	}
	if !app.IsHost(room, currentUser(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "host only"})
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, app.ErrRoomInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "room inactive"})
	case errors.Is(err, app.ErrRoomIDEmpty), errors.Is(err, domain.ErrUserIDEmpty), errors.Is(err, domain.ErrUserIDTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
