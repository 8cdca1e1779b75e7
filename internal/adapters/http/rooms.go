package http

import (
	"math/rand/v2"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/qing-wang/WebRTC-SS/internal/app"
	"github.com/qing-wang/WebRTC-SS/internal/config"
	"github.com/qing-wang/WebRTC-SS/internal/core"
)

// randomRoomMax matches the historical id range handed out by the
// random-room shortcut.
const randomRoomMax = 100

// RoomAPI exposes the registry to the page layer: create, list and
// validate rooms before handing the user a join link.
type RoomAPI struct {
	reg *app.Registry
	cfg *config.Config
}

func NewRoomAPI(reg *app.Registry, cfg *config.Config) *RoomAPI {
	return &RoomAPI{reg: reg, cfg: cfg}
}

// CreateRoom registers a new room. An occupied id is reported as a
// conflict instead of silently replacing the live room.
func (a *RoomAPI) CreateRoom(c *gin.Context) {
	type createRequest struct {
		ID string `json:"id" binding:"required"`
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := core.ParseRoomID(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	if _, ok := a.reg.FindRoom(id); ok {
		c.JSON(http.StatusConflict, gin.H{"created": false, "error": "room already exists"})
		return
	}
	room := a.reg.CreateRoom(id)
	log.Info().Str("module", "adapters.http").Int64("room", id).Msg("room created via API")
	c.JSON(http.StatusCreated, gin.H{"created": true, "room": app.RoomInfo{ID: room.ID(), MemberCount: 0}})
}

func (a *RoomAPI) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": a.reg.ListRooms()})
}

// FindRoom validates a join target by id string.
func (a *RoomAPI) FindRoom(c *gin.Context) {
	id, err := core.ParseRoomID(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	room, ok := a.reg.FindRoom(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": app.RoomInfo{ID: room.ID(), MemberCount: room.MemberCount()}})
}

// RandomRoomID suggests a room number for the create form.
func (a *RoomAPI) RandomRoomID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": rand.Int64N(randomRoomMax)})
}

// WebRTCConfig hands browsers the ICE servers to build their
// RTCPeerConnection with. The relay itself never touches media.
func (a *RoomAPI) WebRTCConfig(c *gin.Context) {
	servers := []webrtc.ICEServer{
		{URLs: a.cfg.STUNServers},
	}
	c.JSON(http.StatusOK, gin.H{"iceServers": servers})
}
