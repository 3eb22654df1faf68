package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	obslog "github.com/winwai/raffled/internal/observability/logger"
	"github.com/winwai/raffled/internal/raffle/domain"
	"github.com/winwai/raffled/internal/usercontext"
)

func parseRaffleID(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	if raw == "" {
		AbortWithError(c, invalidArgument("raffle id is required"))
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		AbortWithError(c, invalidArgument("invalid raffle id"))
		return 0, false
	}
	return id, true
}

// RunDrawManual triggers a draw outside the daily sweep. It shares the
// orchestrator with the scheduler, so racing the sweep is safe: one path wins
// the transition, the other gets a conflict.
func (s *Server) RunDrawManual(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	obslog.WithTrace(c.Request.Context(), s.log).Info("manual draw triggered",
		zap.String("raffle_id", raffleID.String()))

	result, err := s.svc.RunDraw(c.Request.Context(), raffleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	message := "draw completed successfully"
	if result.Status == domain.RaffleStatusCancelled {
		message = "raffle cancelled, no entries"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"result":  result,
	})
}

type recordAdViewsRequest struct {
	AdCount int64 `json:"ad_count"`
}

// RecordAdViews increments a raffle's ad counter for the authenticated
// watcher.
func (s *Server) RecordAdViews(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	userID, _ := usercontext.UserIDFromContext(c.Request.Context())
	if !s.limiter.Allow(strconv.FormatInt(userID, 10)) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	var req recordAdViewsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidArgument("invalid request body"))
			return
		}
	}

	resp, err := s.svc.RecordAdViews(c.Request.Context(), domain.RecordAdViewsRequest{
		RaffleID: raffleID,
		AdCount:  req.AdCount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetRaffleStats reports progress and eligibility for the admin dashboard.
func (s *Server) GetRaffleStats(c *gin.Context) {
	raffleID, ok := parseRaffleID(c)
	if !ok {
		return
	}

	stats, err := s.svc.GetStats(c.Request.Context(), raffleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
