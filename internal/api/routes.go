package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/agent"
	"github.com/zulandar/switchboard/internal/authz"
	"github.com/zulandar/switchboard/internal/bulk"
	"github.com/zulandar/switchboard/internal/conversation"
	"github.com/zulandar/switchboard/internal/events"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/notify"
	"github.com/zulandar/switchboard/internal/query"
	"github.com/zulandar/switchboard/internal/router"
	"gorm.io/gorm"
)

// userIDKey is the gin context key holding the authenticated user ID.
const userIDKey = "userID"

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(r *gin.Engine, opts StartOpts, m *metrics) {
	r.GET("/healthz", handleHealth(opts.DB))
	r.GET("/metrics", gin.WrapH(m.handler()))

	api := r.Group("/api", requireUser())
	{
		api.GET("/conversations", handleListConversations(opts))
		api.POST("/conversations", handleCreateConversation(opts))
		api.GET("/conversations/:id", handleGetConversation(opts))
		api.POST("/conversations/:id/messages", handleAddMessage(opts))
		api.POST("/conversations/:id/assign", handleAssign(opts, m))
		api.POST("/conversations/:id/escalate", handleEscalate(opts))
		api.POST("/conversations/:id/resolve", handleTransition(opts, authz.ActionResolve, router.Resolve, events.TypeConversationResolved))
		api.POST("/conversations/:id/reopen", handleTransition(opts, authz.ActionReopen, router.Reopen, events.TypeConversationReopened))
		api.POST("/conversations/:id/close", handleTransition(opts, authz.ActionClose, router.Close, events.TypeConversationClosed))
		api.POST("/conversations/:id/priority", handleSetPriority(opts))
		api.POST("/conversations/:id/tags", handleAddTag(opts))

		api.GET("/agents", handleListAgents(opts))
		api.POST("/agents", handleCreateAgent(opts))
		api.POST("/agents/:id/availability", handleSetAvailability(opts))

		api.POST("/bulk", handleBulk(opts, m))
	}
}

// requireUser authenticates requests via the X-User-ID header. Identity is
// asserted by the fronting gateway; this service only enforces it is present.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// httpStatus maps a routing error to its HTTP status.
func httpStatus(err error) int {
	switch router.Kind(err) {
	case router.KindNotFound:
		return http.StatusNotFound
	case router.KindPermissionDenied:
		return http.StatusForbidden
	case router.KindInvalidStateTransition, router.KindCapacityExceeded:
		return http.StatusConflict
	case router.KindNoEligibleAgent:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes a routing error as a JSON response with its stable kind.
func fail(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{"error": err.Error(), "kind": router.Kind(err)})
}

// authorize checks the actor may perform action on the conversation,
// loading it first. Absence maps to 404 before authorization, matching the
// single-tenant expectation that IDs are not secrets within an org.
func authorize(c *gin.Context, opts StartOpts, action, conversationID string) (*models.Conversation, bool) {
	var conv models.Conversation
	res := opts.DB.Limit(1).Find(&conv, "id = ?", conversationID)
	if res.Error != nil {
		fail(c, res.Error)
		return nil, false
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found", "kind": router.KindNotFound})
		return nil, false
	}
	if opts.Authorizer != nil {
		ok, err := opts.Authorizer.CanAct(userID(c), action, &conv)
		if err != nil {
			fail(c, err)
			return nil, false
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied", "kind": router.KindPermissionDenied})
			return nil, false
		}
	}
	return &conv, true
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleListConversations(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := query.Filters{
			OrgID:           c.Query("org"),
			Status:          c.Query("status"),
			Priority:        c.Query("priority"),
			AssignedAgentID: c.Query("agent"),
			Tag:             c.Query("tag"),
			Search:          c.Query("search"),
			CreatedAfter:    c.Query("created_after"),
			CreatedBefore:   c.Query("created_before"),
		}
		if opts.Authorizer != nil {
			if f.OrgID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "org query parameter is required"})
				return
			}
			ok, err := opts.Authorizer.CanAct(userID(c), authz.ActionView, &models.Conversation{OrgID: f.OrgID})
			if err != nil {
				fail(c, err)
				return
			}
			if !ok {
				c.JSON(http.StatusForbidden, gin.H{"error": "permission denied", "kind": router.KindPermissionDenied})
				return
			}
		}

		offset, _ := strconv.Atoi(c.Query("offset"))
		limit, _ := strconv.Atoi(c.Query("limit"))
		s := query.Sort{Field: c.Query("sort"), Desc: c.Query("desc") == "true"}

		result, err := query.ListConversations(opts.DB, f, s, query.Page{Offset: offset, Limit: limit})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleCreateConversation(opts StartOpts) gin.HandlerFunc {
	type request struct {
		OrgID          string   `json:"org_id"`
		Subject        string   `json:"subject"`
		Priority       string   `json:"priority"`
		RequiredSkills []string `json:"required_skills"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		conv, err := conversation.Create(opts.DB, conversation.CreateOpts{
			OrgID:          req.OrgID,
			Subject:        req.Subject,
			Priority:       req.Priority,
			RequiredSkills: req.RequiredSkills,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		events.Emit(c.Request.Context(), opts.Events, events.TypeConversationCreated, conv)
		c.JSON(http.StatusCreated, conv)
	}
}

func handleGetConversation(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := authorize(c, opts, authz.ActionView, c.Param("id"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

func handleAddMessage(opts StartOpts) gin.HandlerFunc {
	type request struct {
		Sender   string `json:"sender"`
		SenderID string `json:"sender_id"`
		Body     string `json:"body"`
	}
	return func(c *gin.Context) {
		conv, ok := authorize(c, opts, authz.ActionView, c.Param("id"))
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		msg, err := conversation.AddMessage(opts.DB, conv.ID, req.Sender, req.SenderID, req.Body)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": router.KindNotFound})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func handleAssign(opts StartOpts, m *metrics) gin.HandlerFunc {
	type request struct {
		AgentID  string `json:"agent_id"`
		Force    bool   `json:"force"`
		Transfer bool   `json:"transfer"`
		Reason   string `json:"reason"`
	}
	return func(c *gin.Context) {
		conv, ok := authorize(c, opts, authz.ActionAssign, c.Param("id"))
		if !ok {
			return
		}
		var req request
		// An empty body means automatic selection with no flags.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		decision, err := router.Assign(opts.DB, router.AssignOpts{
			ConversationID: conv.ID,
			AgentID:        req.AgentID,
			ActorID:        userID(c),
			Force:          req.Force,
			Transfer:       req.Transfer,
			Reason:         req.Reason,
		})
		if err != nil {
			m.countDecision(router.Kind(err))
			if errors.Is(err, router.ErrNoEligibleAgent) && decision != nil {
				notify.Send(c.Request.Context(), opts.Notifier, notify.Event{
					Kind:           notify.KindNoAgent,
					ConversationID: conv.ID,
					OrgID:          conv.OrgID,
				})
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"error":    err.Error(),
					"kind":     router.KindNoEligibleAgent,
					"decision": decision,
				})
				return
			}
			fail(c, err)
			return
		}

		m.countDecision("assigned")
		events.Emit(c.Request.Context(), opts.Events, events.TypeConversationAssigned, decision)
		if decision.Forced {
			notify.Send(c.Request.Context(), opts.Notifier, notify.Event{
				Kind:           notify.KindForcedOverload,
				ConversationID: conv.ID,
				OrgID:          conv.OrgID,
				AgentID:        *decision.AgentID,
			})
		}
		c.JSON(http.StatusOK, decision)
	}
}

func handleEscalate(opts StartOpts) gin.HandlerFunc {
	type request struct {
		Reason string `json:"reason"`
	}
	return func(c *gin.Context) {
		conv, ok := authorize(c, opts, authz.ActionEscalate, c.Param("id"))
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := router.Escalate(opts.DB, conv.ID, req.Reason, userID(c)); err != nil {
			fail(c, err)
			return
		}
		events.Emit(c.Request.Context(), opts.Events, events.TypeConversationEscalated, gin.H{
			"conversation_id": conv.ID,
			"org_id":          conv.OrgID,
			"reason":          req.Reason,
		})
		notify.Send(c.Request.Context(), opts.Notifier, notify.Event{
			Kind:           notify.KindEscalated,
			ConversationID: conv.ID,
			OrgID:          conv.OrgID,
			Reason:         req.Reason,
		})
		c.JSON(http.StatusOK, gin.H{"status": models.StatusEscalated})
	}
}

// handleTransition serves the transitions that share a signature: resolve,
// reopen, and close.
func handleTransition(opts StartOpts, action string, fn func(*gorm.DB, string, string) error, eventType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := authorize(c, opts, action, c.Param("id"))
		if !ok {
			return
		}
		if err := fn(opts.DB, conv.ID, userID(c)); err != nil {
			fail(c, err)
			return
		}
		events.Emit(c.Request.Context(), opts.Events, eventType, gin.H{
			"conversation_id": conv.ID,
			"org_id":          conv.OrgID,
			"actor_id":        userID(c),
		})
		c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
	}
}

func handleSetPriority(opts StartOpts) gin.HandlerFunc {
	type request struct {
		Priority string `json:"priority"`
	}
	return func(c *gin.Context) {
		conv, ok := authorize(c, opts, authz.ActionSetPriority, c.Param("id"))
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := router.SetPriority(opts.DB, conv.ID, req.Priority, userID(c)); err != nil {
			if router.Kind(err) == router.KindInternal {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID, "priority": req.Priority})
	}
}

func handleAddTag(opts StartOpts) gin.HandlerFunc {
	type request struct {
		Tag string `json:"tag"`
	}
	return func(c *gin.Context) {
		conv, ok := authorize(c, opts, authz.ActionAddTag, c.Param("id"))
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := router.AddTag(opts.DB, conv.ID, req.Tag, userID(c)); err != nil {
			if router.Kind(err) == router.KindInternal {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID, "tag": req.Tag})
	}
}

func handleListAgents(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		agents, err := agent.List(opts.DB, agent.ListFilters{
			OrgID:        c.Query("org"),
			Availability: c.Query("availability"),
			Skill:        c.Query("skill"),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"agents": agents})
	}
}

func handleCreateAgent(opts StartOpts) gin.HandlerFunc {
	type request struct {
		OrgID              string   `json:"org_id"`
		Name               string   `json:"name"`
		Skills             []string `json:"skills"`
		MaxConcurrentChats int      `json:"max_concurrent_chats"`
		Rating             *float64 `json:"rating"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a, err := agent.Create(opts.DB, agent.CreateOpts{
			OrgID:              req.OrgID,
			Name:               req.Name,
			Skills:             req.Skills,
			MaxConcurrentChats: req.MaxConcurrentChats,
			Rating:             req.Rating,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func handleSetAvailability(opts StartOpts) gin.HandlerFunc {
	type request struct {
		Availability string `json:"availability"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		agentID := c.Param("id")
		if err := agent.SetAvailability(opts.DB, agentID, req.Availability); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": router.KindNotFound})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		events.Emit(c.Request.Context(), opts.Events, events.TypeAgentAvailability, gin.H{
			"agent_id":     agentID,
			"availability": req.Availability,
		})
		c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "availability": req.Availability})
	}
}

func handleBulk(opts StartOpts, m *metrics) gin.HandlerFunc {
	type request struct {
		ConversationIDs []string    `json:"conversation_ids"`
		Action          bulk.Action `json:"action"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := bulk.Apply(opts.DB, bulk.Opts{
			ConversationIDs: req.ConversationIDs,
			Action:          req.Action,
			ActorID:         userID(c),
			Authorizer:      opts.Authorizer,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		m.countBulk(req.Action.Kind, result.Succeeded, result.Failed)
		events.Emit(c.Request.Context(), opts.Events, events.TypeBulkCompleted, result)
		c.JSON(http.StatusOK, result)
	}
}
