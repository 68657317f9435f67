package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"geo-chat-service/internal/geo"
	"geo-chat-service/internal/logging"
	"geo-chat-service/internal/models"
	"geo-chat-service/internal/observability"
)

const (
	minUsernameLen = 2
	maxUsernameLen = 20
	maxContentLen  = 500
)

// PresenceStore is the part of the store the router drives.
type PresenceStore interface {
	NewID() string
	Now() time.Time
	AddUser(u models.User)
	UpdateUser(id string, patch models.UserPatch) (models.User, bool)
	GetUser(id string) (models.User, bool)
	UsersWithinRange(observerID string, radiusKm float64) []models.User
	MessagesWithinRange(observerID string, radiusKm float64) []models.Message
	AddMessage(d models.MessageDraft) models.Message
	ConversationMessages(userA, userB string) []models.Message
}

// Auditor records notable presence changes.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID string, userID *string)
}

// RouterConfig carries the tunables of the protocol.
type RouterConfig struct {
	// NotifyRadiusKm is the fixed radius used to announce location changes and
	// disconnects, regardless of each observer's own radius.
	NotifyRadiusKm  float64
	DefaultRadiusKm int
}

// Router is the protocol state machine: it validates inbound events, drives
// the store and decides who receives which outbound events.
type Router struct {
	store  PresenceStore
	hub    *Hub
	audit  Auditor
	cfg    RouterConfig
	log    *slog.Logger
	tracer trace.Tracer
	routes map[string]eventHandler
}

// NewRouter builds a Router. audit may be nil.
func NewRouter(store PresenceStore, hub *Hub, audit Auditor, cfg RouterConfig, log *slog.Logger) *Router {
	r := &Router{
		store:  store,
		hub:    hub,
		audit:  audit,
		cfg:    cfg,
		log:    log,
		tracer: otel.Tracer("geo-chat-service/ws"),
	}
	r.routes = map[string]eventHandler{
		models.EventJoinLocation:     r.handleJoin,
		models.EventUpdateLocation:   r.handleUpdateLocation,
		models.EventSendMessage:      r.handleSendMessage,
		models.EventStartDirectChat:  r.handleStartDirectChat,
		models.EventSetDistanceRange: r.handleSetDistanceRange,
		models.EventGetUsersInRange:  r.handleGetUsersInRange,
	}
	return r
}

type protocolError struct {
	Code    string
	Message string
}

func (e *protocolError) Error() string {
	return e.Code + ": " + e.Message
}

func invalid(msg string) error {
	return &protocolError{Code: models.CodeValidation, Message: msg}
}

func notFound(msg string) error {
	return &protocolError{Code: models.CodeNotFound, Message: msg}
}

var (
	errNotAuthenticated = &protocolError{Code: models.CodeNotAuthenticated, Message: "Not authenticated"}
	errAlreadyJoined    = &protocolError{Code: models.CodeAlreadyJoined, Message: "Already joined"}
	errBadPayload       = &protocolError{Code: models.CodeBadRequest, Message: "Invalid payload"}
	errBadCoordinates   = invalid("Invalid coordinates")
	errBadRadius        = invalid("Invalid distance range")
)

type eventHandler func(ctx context.Context, c *Client, data json.RawMessage) error

// failureMessages are reported when a handler fails unexpectedly.
var failureMessages = map[string]string{
	models.EventJoinLocation:     "Failed to join location chat",
	models.EventUpdateLocation:   "Failed to update location",
	models.EventSendMessage:      "Failed to send message",
	models.EventStartDirectChat:  "Failed to start direct chat",
	models.EventSetDistanceRange: "Failed to set distance range",
	models.EventGetUsersInRange:  "Failed to get users in range",
}

// HandleFrame processes one inbound frame. Errors are reported to c only.
func (r *Router) HandleFrame(ctx context.Context, c *Client, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		r.sendError(c, &protocolError{Code: models.CodeBadRequest, Message: "Malformed event frame"})
		return
	}

	handler, ok := r.routes[env.Event]
	if !ok {
		observability.IncWSEvent(wsKind, "unknown")
		r.sendError(c, &protocolError{Code: models.CodeUnknownEvent, Message: "Unknown event: " + env.Event})
		return
	}
	observability.IncWSEvent(wsKind, env.Event)

	ctx, span := r.tracer.Start(ctx, "ws."+env.Event, trace.WithAttributes(
		attribute.String("ws.conn_id", c.ID()),
		attribute.String("chat.user_id", c.UserID()),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			span.SetStatus(codes.Error, "panic")
			r.log.ErrorContext(ctx, "ws router - handler panic", logging.Event(env.Event), logging.ConnID(c.ID()), slog.Any("panic", rec))
			r.sendError(c, &protocolError{Code: models.CodeInternal, Message: failureMessages[env.Event]})
		}
	}()

	if err := handler(ctx, c, env.Data); err != nil {
		span.SetStatus(codes.Error, err.Error())
		var perr *protocolError
		if !errors.As(err, &perr) {
			r.log.ErrorContext(ctx, "ws router - handler failed", logging.Event(env.Event), logging.ConnID(c.ID()), logging.Err(err))
			perr = &protocolError{Code: models.CodeInternal, Message: failureMessages[env.Event]}
		}
		r.sendError(c, perr)
	}
}

// HandleDisconnect unbinds the connection and marks its user offline.
func (r *Router) HandleDisconnect(ctx context.Context, c *Client) {
	userID := r.hub.Unregister(c)
	if userID == "" {
		return
	}
	offline := false
	updated, ok := r.store.UpdateUser(userID, models.UserPatch{IsOnline: &offline})
	if !ok {
		return
	}
	r.notifyNearby(userID, models.EventUserUpdated, updated)
	r.publishPresence(ctx, "presence.offline", updated.ID, c.Info())
	r.log.InfoContext(ctx, "ws router - user disconnected", logging.UserID(userID), logging.ConnID(c.ID()))
}

// BroadcastUserLeft tells every connection that userID is gone.
func (r *Router) BroadcastUserLeft(ctx context.Context, userID string) {
	frame, err := models.NewEnvelope(models.EventUserLeft, models.UserLeftPayload{UserID: userID})
	if err != nil {
		r.log.ErrorContext(ctx, "ws router - encode user_left", logging.Err(err))
		return
	}
	r.hub.Broadcast(frame)
	r.publishPresence(ctx, "presence.left", userID, ConnInfo{})
	r.emitAudit(ctx, "user evicted after inactivity", "", userID)
}

func (r *Router) handleJoin(ctx context.Context, c *Client, data json.RawMessage) error {
	sess := c.Session()
	if sess.Bound() {
		return errAlreadyJoined
	}
	var req models.JoinLocationRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	username := strings.TrimSpace(req.Username)
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return invalid("Username must be between 2 and 20 characters")
	}
	lat, lon, ok := coordinates(req.Latitude, req.Longitude)
	if !ok {
		return errBadCoordinates
	}

	user := models.User{
		ID:        r.store.NewID(),
		Username:  username,
		Latitude:  lat,
		Longitude: lon,
		LastSeen:  r.store.Now(),
		IsOnline:  true,
	}
	if err := r.hub.Bind(c, user.ID); err != nil {
		if errors.Is(err, ErrAlreadyBound) {
			return errAlreadyJoined
		}
		return err
	}
	r.store.AddUser(user)
	sess.setLocation(lat, lon)
	c.setRadius(r.cfg.DefaultRadiusKm)
	sess.PeerID = ""

	radius := float64(sess.Radius)
	usersInRange := r.store.UsersWithinRange(user.ID, radius)
	messagesInRange := r.store.MessagesWithinRange(user.ID, radius)

	r.send(c, models.EventUserInitialized, user)
	r.send(c, models.EventUsersInRange, usersInRange)
	r.send(c, models.EventMessagesInRange, messagesInRange)

	if err := r.announceJoin(user); err != nil {
		return err
	}

	r.publishPresence(ctx, "presence.joined", user.ID, c.Info())
	r.emitAudit(ctx, fmt.Sprintf("user %q joined", user.Username), c.Info().RequestID, user.ID)
	r.log.InfoContext(ctx, "ws router - user joined", logging.UserID(user.ID), logging.ConnID(c.ID()),
		slog.Float64("latitude", lat), slog.Float64("longitude", lon))
	return nil
}

func (r *Router) handleUpdateLocation(ctx context.Context, c *Client, data json.RawMessage) error {
	sess := c.Session()
	if !sess.Bound() {
		return errNotAuthenticated
	}
	var req models.UpdateLocationRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	lat, lon, ok := coordinates(req.Latitude, req.Longitude)
	if !ok {
		return errBadCoordinates
	}

	updated, found := r.store.UpdateUser(sess.UserID, models.UserPatch{Latitude: &lat, Longitude: &lon})
	if !found {
		return notFound("User not found")
	}
	sess.setLocation(lat, lon)
	r.notifyNearby(updated.ID, models.EventUserUpdated, updated)
	r.log.DebugContext(ctx, "ws router - location updated", logging.UserID(updated.ID))
	return nil
}

func (r *Router) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	sess := c.Session()
	if !sess.Bound() {
		return errNotAuthenticated
	}
	var req models.SendMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if n := utf8.RuneCountInString(content); n < 1 || n > maxContentLen {
		return invalid("Message must be between 1 and 500 characters")
	}
	lat, lon, ok := coordinates(req.Latitude, req.Longitude)
	if !ok {
		return errBadCoordinates
	}

	author, found := r.store.GetUser(sess.UserID)
	if !found {
		return notFound("User not found")
	}

	recipientID := strings.TrimSpace(req.RecipientID)
	if recipientID == "" {
		msg := r.store.AddMessage(models.PublicDraft(author, content, lat, lon))
		frame, err := models.NewEnvelope(models.EventNewMessage, msg)
		if err != nil {
			return err
		}
		for _, other := range r.store.UsersWithinRange(author.ID, float64(sess.Radius)) {
			r.hub.SendToUser(other.ID, frame)
		}
		r.hub.deliver(c, frame)
		observability.IncMessage("public")
		return nil
	}

	if recipientID == author.ID {
		return invalid("Cannot send a direct message to yourself")
	}
	if _, found := r.store.GetUser(recipientID); !found {
		return notFound("Recipient not found")
	}
	msg := r.store.AddMessage(models.DirectDraft(author, recipientID, content, lat, lon))
	frame, err := models.NewEnvelope(models.EventNewMessage, msg)
	if err != nil {
		return err
	}
	r.hub.SendToUser(recipientID, frame)
	r.hub.deliver(c, frame)
	observability.IncMessage("direct")
	r.log.DebugContext(ctx, "ws router - direct message", logging.UserID(author.ID),
		logging.ChatID(models.ConversationID(author.ID, recipientID)))
	return nil
}

func (r *Router) handleStartDirectChat(ctx context.Context, c *Client, data json.RawMessage) error {
	sess := c.Session()
	if !sess.Bound() {
		return errNotAuthenticated
	}
	var req models.StartDirectChatRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	targetID := strings.TrimSpace(req.UserID)
	if targetID == "" {
		return invalid("User ID is required")
	}
	if targetID == sess.UserID {
		return invalid("Cannot start chat with yourself")
	}
	target, found := r.store.GetUser(targetID)
	if !found {
		return notFound("User not found")
	}

	sess.PeerID = target.ID
	chatID := models.ConversationID(sess.UserID, target.ID)
	r.send(c, models.EventDirectChatStarted, models.DirectChatStartedPayload{
		ChatID:   chatID,
		User:     target,
		Messages: r.store.ConversationMessages(sess.UserID, target.ID),
	})
	r.log.DebugContext(ctx, "ws router - direct chat started", logging.UserID(sess.UserID), logging.ChatID(chatID))
	return nil
}

func (r *Router) handleSetDistanceRange(ctx context.Context, c *Client, data json.RawMessage) error {
	sess := c.Session()
	if !sess.Bound() {
		return errNotAuthenticated
	}
	var req models.RangeRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !ValidRadius(req.Range) {
		return errBadRadius
	}
	c.setRadius(req.Range)
	r.sendRange(c, req.Range)
	return nil
}

func (r *Router) handleGetUsersInRange(ctx context.Context, c *Client, data json.RawMessage) error {
	sess := c.Session()
	if !sess.Bound() {
		return errNotAuthenticated
	}
	var req models.RangeRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if !ValidRadius(req.Range) {
		return errBadRadius
	}
	r.sendRange(c, req.Range)
	return nil
}

// announceJoin sends user_joined to every connected user whose own radius
// now covers the newcomer.
func (r *Router) announceJoin(user models.User) error {
	frame, err := models.NewEnvelope(models.EventUserJoined, user)
	if err != nil {
		return err
	}
	for _, other := range r.store.UsersWithinRange(user.ID, float64(maxRadius())) {
		observer, ok := r.hub.ClientForUser(other.ID)
		if !ok {
			continue
		}
		if geo.Distance(other.Latitude, other.Longitude, user.Latitude, user.Longitude) <= float64(observer.Radius()) {
			r.hub.deliver(observer, frame)
		}
	}
	return nil
}

func (r *Router) sendRange(c *Client, radiusKm int) {
	userID := c.UserID()
	r.send(c, models.EventUsersInRange, r.store.UsersWithinRange(userID, float64(radiusKm)))
	r.send(c, models.EventMessagesInRange, r.store.MessagesWithinRange(userID, float64(radiusKm)))
}

// notifyNearby sends event to everyone within the fixed notification radius of userID.
func (r *Router) notifyNearby(userID, event string, data any) {
	frame, err := models.NewEnvelope(event, data)
	if err != nil {
		r.log.Error("ws router - encode event", logging.Event(event), logging.Err(err))
		return
	}
	for _, other := range r.store.UsersWithinRange(userID, r.cfg.NotifyRadiusKm) {
		r.hub.SendToUser(other.ID, frame)
	}
}

func (r *Router) send(c *Client, event string, data any) {
	frame, err := models.NewEnvelope(event, data)
	if err != nil {
		r.log.Error("ws router - encode event", logging.Event(event), logging.Err(err))
		return
	}
	r.hub.deliver(c, frame)
}

func (r *Router) sendError(c *Client, perr *protocolError) {
	r.send(c, models.EventError, models.ErrorPayload{Message: perr.Message, Code: perr.Code})
}

func (r *Router) publishPresence(ctx context.Context, routingKey, userID string, info ConnInfo) {
	_ = observability.PublishEvent(ctx, routingKey, observability.NewEventEnvelope("presence_events", routingKey, map[string]interface{}{
		"user_id": userID,
		"conn_id": info.ConnID,
		"ip":      info.IP,
	}), observability.BuildHeaders(info.RequestID, info.TraceID))
}

func (r *Router) emitAudit(ctx context.Context, text, requestID, userID string) {
	if r.audit == nil {
		return
	}
	r.audit.Emit(ctx, "INFO", text, requestID, &userID)
}

func decode(data json.RawMessage, v any) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errBadPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errBadPayload
	}
	return nil
}

func coordinates(lat, lon *float64) (float64, float64, bool) {
	if lat == nil || lon == nil || !geo.IsValidCoordinates(*lat, *lon) {
		return 0, 0, false
	}
	return *lat, *lon, true
}
