package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/winwai/raffled/internal/raffle/domain"
)

type simulateThresholdRequest struct {
	PrizeValue float64 `json:"prize_value"`
	ECPM       float64 `json:"ecpm"`
	FillRate   float64 `json:"fill_rate"`
}

// SimulateThreshold runs the ad-economics planner for a hypothetical prize.
func (s *Server) SimulateThreshold(c *gin.Context) {
	var req simulateThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidArgument("invalid request body"))
		return
	}

	breakdown, err := s.svc.SimulateThreshold(c.Request.Context(), domain.SimulateThresholdRequest{
		PrizeValue: req.PrizeValue,
		ECPM:       req.ECPM,
		FillRate:   req.FillRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

type testSelectionRequest struct {
	Iterations int `json:"iterations"`
}

// TestSelection runs the weighted-selection fairness diagnostic.
func (s *Server) TestSelection(c *gin.Context) {
	var req testSelectionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidArgument("invalid request body"))
			return
		}
	}

	report, err := s.svc.TestSelection(c.Request.Context(), req.Iterations)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
