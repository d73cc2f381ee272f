// Package api exposes the engine over HTTP for the mobile client.
// Handlers hold references to the injected components; nothing here
// owns business logic beyond request parsing and response shaping.
package api

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/metalfolio/price-engine/internal/livecache"
	"github.com/metalfolio/price-engine/internal/metals"
	"github.com/metalfolio/price-engine/internal/observ"
	"github.com/metalfolio/price-engine/internal/resolver"
	"github.com/metalfolio/price-engine/internal/series"
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Server wires the handlers to the engine components.
type Server struct {
	cache    *livecache.Cache
	resolver *resolver.Resolver
	history  *series.History
	maxAge   time.Duration
}

func NewServer(cache *livecache.Cache, res *resolver.Resolver, hist *series.History, maxAge time.Duration) *Server {
	if maxAge <= 0 {
		maxAge = livecache.DefaultMaxAge
	}
	return &Server{cache: cache, resolver: res, history: hist, maxAge: maxAge}
}

// Routes registers every endpoint on the router.
func (s *Server) Routes(r *gin.Engine) {
	r.GET("/spot-prices", s.spotPrices)
	r.GET("/historical-spot", s.historicalSpot)
	r.POST("/historical-spot-batch", s.historicalSpotBatch)
	r.GET("/spot-price-history", s.spotPriceHistory)
	r.GET("/healthz", gin.WrapH(observ.HealthHandler()))
	r.GET("/metrics", gin.WrapH(observ.MetricsHandler()))
}

func (s *Server) spotPrices(c *gin.Context) {
	observ.IncCounter("http_requests_total", map[string]string{"endpoint": "spot_prices"})
	s.cache.RefreshIfStale(c.Request.Context(), s.maxAge)
	state := s.cache.Get(c.Request.Context())

	resp := gin.H{
		"success":       true,
		"gold":          state.Prices[metals.Gold],
		"silver":        state.Prices[metals.Silver],
		"platinum":      state.Prices[metals.Platinum],
		"palladium":     state.Prices[metals.Palladium],
		"source":        state.Source,
		"change":        state.Change,
		"marketsClosed": state.MarketsClosed,
	}
	if state.LastUpdated != nil {
		resp["timestamp"] = state.LastUpdated.UTC().Format(time.RFC3339)
		resp["cacheAgeMinutes"] = int(time.Since(*state.LastUpdated).Minutes())
	} else {
		resp["timestamp"] = nil
		resp["cacheAgeMinutes"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) historicalSpot(c *gin.Context) {
	observ.IncCounter("http_requests_total", map[string]string{"endpoint": "historical_spot"})

	dateStr := c.Query("date")
	if !dateRe.MatchString(dateStr) {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		badRequest(c, "invalid date: "+dateStr)
		return
	}

	q := resolver.Query{Day: metals.Day(day)}
	if timeStr := c.Query("time"); timeStr != "" {
		if !timeRe.MatchString(timeStr) {
			badRequest(c, "time must be HH:MM")
			return
		}
		parsed, err := time.Parse("15:04", timeStr)
		if err != nil {
			badRequest(c, "invalid time: "+timeStr)
			return
		}
		q.Hour, q.Minute, q.HasTime = parsed.Hour(), parsed.Minute(), true
	}
	if metalStr := c.Query("metal"); metalStr != "" && metalStr != "all" {
		m, ok := metals.Parse(metalStr)
		if !ok {
			badRequest(c, "unknown metal: "+metalStr)
			return
		}
		q.Metals = []metals.Metal{m}
	}

	res := s.resolver.Resolve(c.Request.Context(), q)

	resp := gin.H{
		"success":     res.OK,
		"date":        dateStr,
		"granularity": res.Granularity,
		"source":      res.Source,
	}
	if q.HasTime {
		resp["time"] = c.Query("time")
	}
	requested := q.Metals
	if len(requested) == 0 {
		requested = metals.All()
	}
	for _, m := range requested {
		if v, ok := res.Prices[m]; ok {
			resp[string(m)] = v
		} else {
			resp[string(m)] = nil
		}
	}
	if len(res.DailyRange) > 0 {
		resp["dailyRange"] = res.DailyRange
	}
	if res.Note != "" {
		resp["note"] = res.Note
	}
	// Misses are 200s: the request was valid, the data does not exist,
	// and clients handle both shapes through one path.
	c.JSON(http.StatusOK, resp)
}

type batchRequest struct {
	Dates []string `json:"dates"`
}

func (s *Server) historicalSpotBatch(c *gin.Context) {
	observ.IncCounter("http_requests_total", map[string]string{"endpoint": "historical_spot_batch"})

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"dates\": [...]}")
		return
	}
	if len(req.Dates) == 0 {
		badRequest(c, "dates must not be empty")
		return
	}
	if len(req.Dates) > resolver.MaxBatchDates {
		badRequest(c, "Maximum 100 dates per batch request")
		return
	}

	days := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		if !dateRe.MatchString(d) {
			badRequest(c, "date must be YYYY-MM-DD: "+d)
			return
		}
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			badRequest(c, "invalid date: "+d)
			return
		}
		days = append(days, day)
	}

	results := s.resolver.ResolveBatch(c.Request.Context(), days)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) spotPriceHistory(c *gin.Context) {
	observ.IncCounter("http_requests_total", map[string]string{"endpoint": "spot_price_history"})

	rangeName := c.DefaultQuery("range", "1M")
	from, err := series.ParseRange(rangeName, time.Now())
	if err != nil {
		badRequest(c, "range must be one of 1M, 3M, 6M, 1Y, 5Y, ALL")
		return
	}

	maxPoints := series.MaxChartPoints
	if mp := c.Query("maxPoints"); mp != "" {
		n, err := strconv.Atoi(mp)
		if err != nil || n <= 0 {
			badRequest(c, "maxPoints must be a positive integer")
			return
		}
		if n < maxPoints {
			maxPoints = n
		}
	}

	points, total, err := s.history.Build(c.Request.Context(), from, maxPoints)
	if err != nil {
		observ.Log("history_build_failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "history unavailable"})
		return
	}

	data := make([]gin.H, len(points))
	for i, p := range points {
		data[i] = gin.H{
			"date":      p.Date,
			"gold":      p.Values[metals.Gold],
			"silver":    p.Values[metals.Silver],
			"platinum":  p.Values[metals.Platinum],
			"palladium": p.Values[metals.Palladium],
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"range":         rangeName,
		"totalPoints":   total,
		"sampledPoints": len(points),
		"data":          data,
	})
}

func badRequest(c *gin.Context, msg string) {
	observ.IncCounter("http_bad_requests_total", nil)
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
