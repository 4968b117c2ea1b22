package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func limitParam(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"dry_run":        s.Meta.DryRun,
		"gateway":        s.Meta.Gateway,
		"mock_feed":      s.Meta.UseMockFeed,
		"version":        s.Meta.Version,
		"uptime_sec":     int(time.Since(s.Meta.StartedAt).Seconds()),
		"halted":         s.RiskMgr.Halted(),
		"open_positions": s.RiskMgr.OpenCount(),
		"spent_today":    s.RiskMgr.SpentToday(),
	})
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.Positions.Open()})
}

func (s *Server) getPositionHistory(c *gin.Context) {
	rows, err := s.Queries.RecentPositions(c.Request.Context(), limitParam(c, 50, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": rows})
}

func (s *Server) getSignals(c *gin.Context) {
	rows, err := s.Queries.RecentSignals(c.Request.Context(), limitParam(c, 50, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": rows})
}

func (s *Server) getSignalStats(c *gin.Context) {
	rows, err := s.Queries.SignalOutcomeStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": rows})
}

func (s *Server) getTrades(c *gin.Context) {
	rows, err := s.Queries.RecentTrades(c.Request.Context(), limitParam(c, 50, 500))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": rows})
}

func (s *Server) getPatterns(c *gin.Context) {
	set := s.Learning.Snapshot()
	c.JSON(http.StatusOK, gin.H{"version": set.Version, "patterns": set.Patterns})
}

func (s *Server) getWeights(c *gin.Context) {
	set := s.Learning.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":    set.Version,
		"weights":    set.Weights,
		"updated_at": set.UpdatedAt,
	})
}

func (s *Server) getWeightHistory(c *gin.Context) {
	rows, err := s.Queries.WeightHistory(c.Request.Context(), limitParam(c, 20, 200))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

func (s *Server) getThresholds(c *gin.Context) {
	set := s.Learning.Snapshot()
	c.JSON(http.StatusOK, gin.H{"version": set.Version, "thresholds": set.Thresholds})
}

func (s *Server) getRiskMetrics(c *gin.Context) {
	today := time.Now().Format("2006-01-02")
	m, err := s.Queries.RiskMetricsFor(c.Request.Context(), today)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	limits := s.RiskMgr.Limits()
	c.JSON(http.StatusOK, gin.H{
		"metrics":         m,
		"open_positions":  s.RiskMgr.OpenCount(),
		"max_concurrent":  limits.MaxConcurrent,
		"daily_budget":    limits.DailyBudget,
		"spent_today":     s.RiskMgr.SpentToday(),
		"trading_halted":  s.RiskMgr.Halted(),
		"stop_loss_pct":   limits.StopLossPct,
		"take_profit_pct": limits.TakeProfitPct,
	})
}

func (s *Server) getTickerStats(c *gin.Context) {
	rows, err := s.Queries.ListTickerStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickers": rows})
}

func (s *Server) haltTrading(c *gin.Context) {
	s.RiskMgr.Halt("operator request")
	c.JSON(http.StatusOK, gin.H{"halted": true})
}

func (s *Server) resumeTrading(c *gin.Context) {
	s.RiskMgr.Resume()
	c.JSON(http.StatusOK, gin.H{"halted": false})
}

func (s *Server) liquidateAll(c *gin.Context) {
	s.Positions.EmergencyLiquidate("operator request")
	c.JSON(http.StatusOK, gin.H{"liquidating": true})
}
