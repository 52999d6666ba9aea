package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/mealscan/mealscan-api/internal/logger"
	"github.com/mealscan/mealscan-api/internal/models"
	"github.com/mealscan/mealscan-api/internal/pipeline"
	"github.com/mealscan/mealscan-api/internal/service"
	"go.uber.org/zap"
)

// WebSocket message types for the voice logging protocol.
const (
	MsgTypeVoiceNote = "voice_note" // User sends an audio meal note
	MsgTypeTextNote  = "text_note"  // User sends a typed meal note
	MsgTypeClarify   = "clarify"    // User answers a clarification question
	MsgTypeAnalysis  = "analysis"   // Server returns a completed analysis
	MsgTypeError     = "error"      // Error message
	MsgTypeConnected = "connected"  // Connection confirmed
)

// WSMessage is the envelope for all messages sent over the voice WebSocket.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// VoiceNotePayload carries a recorded meal note.
type VoiceNotePayload struct {
	AudioData []byte `json:"audio_data"` // base64-encoded
}

// TextNotePayload carries a typed meal note.
type TextNotePayload struct {
	Text string `json:"text"`
}

// ClarifyPayload answers a pending clarification question.
type ClarifyPayload struct {
	SessionKey string `json:"session_key"`
	Text       string `json:"text"`
}

// ErrorPayload carries an error message to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ConnectedPayload confirms a successful connection.
type ConnectedPayload struct {
	UserID uint `json:"user_id"`
}

// VoiceHandler manages WebSocket connections for hands-free meal logging.
type VoiceHandler struct {
	Hub       *Hub
	JwtSecret string
	Service   *service.AnalysisService
}

// NewVoiceHandler returns a new VoiceHandler.
func NewVoiceHandler(hub *Hub, jwtSecret string, svc *service.AnalysisService) *VoiceHandler {
	return &VoiceHandler{
		Hub:       hub,
		JwtSecret: jwtSecret,
		Service:   svc,
	}
}

// upgrader is configured for voice channel WebSocket upgrades.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		switch origin {
		case "https://mealscan.app",
			"https://www.mealscan.app",
			"https://api.mealscan.app":
			return true
		}
		// Allow localhost for development
		if strings.HasPrefix(origin, "http://localhost:") || origin == "http://localhost" {
			return true
		}
		return false
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HandleVoiceLog upgrades an HTTP request to a WebSocket connection for
// hands-free meal logging. Authentication is done via a "token" query
// parameter because WebSocket connections cannot easily use Authorization
// headers.
func (vh *VoiceHandler) HandleVoiceLog(c *gin.Context) {
	log := logger.Get()

	// Authenticate via query param token
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "token query parameter is required"})
		return
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(vh.JwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
		return
	}

	// Ensure this is an access token
	tokenType, ok := claims["type"].(string)
	if !ok || tokenType != "access" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token type"})
		return
	}

	// Extract user ID
	idFloat, ok := claims["user_id"].(float64)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user_id in token"})
		return
	}
	userID := uint(idFloat)

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed",
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return
	}

	// Each user gets one channel shared by all their devices.
	client := &Client{
		Hub:       vh.Hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		ChannelID: strconv.FormatUint(uint64(userID), 10),
		UserID:    userID,
	}
	vh.Hub.Register <- client

	// Send connected confirmation
	connectedPayload, _ := json.Marshal(ConnectedPayload{UserID: userID})
	connectedMsg, _ := json.Marshal(WSMessage{
		Type:    MsgTypeConnected,
		Payload: connectedPayload,
	})
	client.Send <- connectedMsg

	log.Info("voice logging session started", zap.Uint("user_id", userID))

	// Start read and write pumps
	go client.WritePump()
	go client.ReadPump(func(cl *Client, data []byte) {
		vh.handleMessage(cl, data)
	})
}

// handleMessage parses an incoming WebSocket message and routes it to the
// appropriate handler.
func (vh *VoiceHandler) handleMessage(client *Client, data []byte) {
	log := logger.Get()

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		vh.sendError(client, "invalid message format")
		return
	}

	log.Debug("received ws message",
		zap.String("type", msg.Type),
		zap.Uint("user_id", client.UserID),
	)

	switch msg.Type {
	case MsgTypeVoiceNote:
		vh.handleVoiceNote(client, msg.Payload)

	case MsgTypeTextNote:
		vh.handleTextNote(client, msg.Payload)

	case MsgTypeClarify:
		vh.handleClarify(client, msg.Payload)

	default:
		vh.sendError(client, "unknown message type: "+msg.Type)
	}
}

// handleVoiceNote runs an audio meal note through the analysis pipeline.
func (vh *VoiceHandler) handleVoiceNote(client *Client, payload json.RawMessage) {
	var note VoiceNotePayload
	if err := json.Unmarshal(payload, &note); err != nil {
		vh.sendError(client, "invalid voice note payload")
		return
	}
	if len(note.AudioData) == 0 {
		vh.sendError(client, "audio_data is required")
		return
	}

	vh.runAnalysis(client, pipeline.RawSubmission{
		Modality:  models.ModalityAudio,
		AudioData: note.AudioData,
		UserID:    client.UserID,
	})
}

// handleTextNote runs a typed meal note through the analysis pipeline.
func (vh *VoiceHandler) handleTextNote(client *Client, payload json.RawMessage) {
	var note TextNotePayload
	if err := json.Unmarshal(payload, &note); err != nil {
		vh.sendError(client, "invalid text note payload")
		return
	}
	if note.Text == "" {
		vh.sendError(client, "text is required")
		return
	}

	vh.runAnalysis(client, pipeline.RawSubmission{
		Modality: models.ModalityText,
		Text:     note.Text,
		UserID:   client.UserID,
	})
}

// handleClarify answers a pending clarification question.
func (vh *VoiceHandler) handleClarify(client *Client, payload json.RawMessage) {
	log := logger.Get()

	var clarify ClarifyPayload
	if err := json.Unmarshal(payload, &clarify); err != nil {
		vh.sendError(client, "invalid clarify payload")
		return
	}
	if clarify.SessionKey == "" || clarify.Text == "" {
		vh.sendError(client, "session_key and text are required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	outcome, err := vh.Service.ResolveClarification(ctx, client.UserID, clarify.SessionKey, clarify.Text)
	if err != nil {
		log.Error("failed to resolve clarification",
			zap.Uint("user_id", client.UserID),
			zap.Error(err),
		)
		vh.sendError(client, "failed to resolve clarification")
		return
	}

	vh.sendOutcome(client, outcome)
}

// runAnalysis executes the pipeline and fans the outcome out to every device
// on the user's channel.
func (vh *VoiceHandler) runAnalysis(client *Client, raw pipeline.RawSubmission) {
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	outcome, err := vh.Service.AnalyzeSubmission(ctx, raw)
	if err != nil {
		var ume pipeline.UnsupportedMediaError
		if errors.As(err, &ume) {
			vh.sendError(client, ume.Error())
			return
		}
		log.Error("voice analysis failed",
			zap.Uint("user_id", client.UserID),
			zap.Error(err),
		)
		vh.sendError(client, "failed to analyze meal")
		return
	}

	vh.sendOutcome(client, outcome)
}

// sendOutcome broadcasts a completed analysis to the user's channel.
func (vh *VoiceHandler) sendOutcome(client *Client, outcome *service.AnalysisOutcome) {
	payload, _ := json.Marshal(outcome)
	msg, _ := json.Marshal(WSMessage{
		Type:    MsgTypeAnalysis,
		Payload: payload,
	})
	vh.Hub.Broadcast <- &ChannelMessage{
		ChannelID: client.ChannelID,
		Message:   msg,
	}
}

// sendError sends an error message to a single client.
func (vh *VoiceHandler) sendError(client *Client, message string) {
	errPayload, _ := json.Marshal(ErrorPayload{
		Message: message,
	})
	errMsg, _ := json.Marshal(WSMessage{
		Type:    MsgTypeError,
		Payload: errPayload,
	})
	client.Send <- errMsg
}
