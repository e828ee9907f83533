package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/logger"
	obsmetrics "github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonAgentRate = "agent-rate"

type dealIngestRateLimitKey struct {
	AgentID string `json:"agent_id"`
}

// DealIngestRateLimit throttles deal creation per writing agent. The
// agent id comes from the request body, which is restored for the
// handler's own binding.
func (s *Server) DealIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.dealLimiter == nil || !s.dealLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		agentID, err := readDealIngestKey(c)
		if err != nil {
			logger.FromContext(ctx).Warn("deal ingest rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}
		if agentID == "" {
			c.Next()
			return
		}

		result, err := s.dealLimiter.AllowAgent(ctx, agentID)
		if err != nil {
			logger.FromContext(ctx).Warn("deal ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyDealIngestRateLimit(c, endpoint, rateLimitReasonAgentRate, s.obsMetrics)
			return
		}

		c.Next()
	}
}

func denyDealIngestRateLimit(c *gin.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("deal ingest rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	c.Header("Retry-After", "1")
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func readDealIngestKey(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload dealIngestRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}

	return strings.TrimSpace(payload.AgentID), nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
