package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sous-chef/server/internal/agent/classifier"
	"github.com/sous-chef/server/internal/agent/model"
	errx "github.com/sous-chef/server/internal/core/error"
	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

type classifyRequest struct {
	Text string `json:"text" binding:"required"`
}

type classifyResponse struct {
	Rules *model.IntentResult `json:"rules,omitempty"`
	LLM   *model.IntentResult `json:"llm,omitempty"`
}

type searchHit struct {
	Recipe *recipe.Recipe `json:"recipe"`
	Score  float64        `json:"score"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// postMessage runs one turn. Without an :id a new conversation is started.
func (s *Server) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required")
		return
	}
	resp, err := s.deps.Runner.Invoke(c.Request.Context(), model.QueryInput{
		ConversationID: c.Param("id"),
		Query:          req.Message,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// listMessages returns the stored transcript, or its last ?last= messages.
func (s *Server) listMessages(c *gin.Context) {
	last, ok := intQuery(c, "last", 0)
	if !ok {
		return
	}
	history, err := s.deps.Conversations.LoadHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, errx.WrapRedis(err))
		return
	}
	msgs := history.Tail(last)
	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyMessage{Role: string(m.Role), Content: m.Content})
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": history.ConversationID, "messages": out})
}

func (s *Server) clearConversation(c *gin.Context) {
	if err := s.deps.Conversations.ClearHistory(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, errx.WrapRedis(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// classify reports what the rules and, when configured, the classifier make
// of a text without running a turn.
func (s *Server) classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "text is required")
		return
	}
	ctx := c.Request.Context()
	var out classifyResponse
	if s.deps.Router != nil {
		if res, ok := s.deps.Router.Match(ctx, req.Text); ok {
			out.Rules = &res
		}
	}
	if s.deps.Classifier != nil {
		res := s.deps.Classifier.Classify(ctx, req.Text, classifier.Context{})
		out.LLM = &res
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listRecipes(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultListLimit)
	if !ok {
		return
	}
	recipes, err := s.deps.Recipes.Recent(c.Request.Context(), min(limit, maxListLimit))
	if err != nil {
		fail(c, errx.WrapStore(err, store.ErrNotFound))
		return
	}
	total, err := s.deps.Recipes.Count(c.Request.Context())
	if err != nil {
		fail(c, errx.WrapStore(err, store.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes, "total": total})
}

func (s *Server) searchRecipes(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "q is required")
		return
	}
	k, ok := intQuery(c, "k", store.DefaultTopK)
	if !ok {
		return
	}
	results, err := s.deps.Searcher.Search(c.Request.Context(), q, min(k, maxListLimit))
	if err != nil {
		fail(c, errx.WrapStore(err, store.ErrNotFound))
		return
	}
	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{Recipe: r.Recipe, Score: r.Score}
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": hits})
}

func (s *Server) getRecipe(c *gin.Context) {
	r, err := s.deps.Recipes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, errx.WrapStore(err, store.ErrNotFound))
		return
	}
	c.JSON(http.StatusOK, r)
}

// intQuery reads a positive integer query parameter. It writes the 400
// itself and returns false on bad input.
func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		badRequest(c, key+" must be a positive integer")
		return 0, false
	}
	return n, true
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func fail(c *gin.Context, err error) {
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errx.MessageOf(err)})
}
