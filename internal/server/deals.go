package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	dealdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type createDealRequest struct {
	AgentID         string          `json:"agent_id"`
	CarrierID       string          `json:"carrier_id"`
	AnnualPremium   decimal.Decimal `json:"annual_premium"`
	InsuranceType   string          `json:"insurance_type"`
	ApplicationDate string          `json:"application_date"`
	EffectiveDate   string          `json:"effective_date"`
}

func (s *Server) CreateDeal(c *gin.Context) {
	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	applicationDate, err := parseOptionalTime(req.ApplicationDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("application_date", "invalid_application_date", "invalid application_date"))
		return
	}
	effectiveDate, err := parseOptionalTime(req.EffectiveDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("effective_date", "invalid_effective_date", "invalid effective_date"))
		return
	}

	create := dealdomain.CreateDealRequest{
		AgentID:       strings.TrimSpace(req.AgentID),
		CarrierID:     strings.TrimSpace(req.CarrierID),
		AnnualPremium: req.AnnualPremium,
		InsuranceType: strings.TrimSpace(req.InsuranceType),
		EffectiveDate: effectiveDate,
	}
	if applicationDate != nil {
		create.ApplicationDate = *applicationDate
	}

	resp, err := s.dealSvc.Create(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type amendDealRequest struct {
	AnnualPremium *decimal.Decimal `json:"annual_premium"`
	InsuranceType string           `json:"insurance_type"`
	EffectiveDate string           `json:"effective_date"`
}

func (s *Server) AmendDeal(c *gin.Context) {
	var req amendDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	effectiveDate, err := parseOptionalTime(req.EffectiveDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("effective_date", "invalid_effective_date", "invalid effective_date"))
		return
	}

	dealID := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()

	// Serialize split replacement per deal across instances.
	if s.dealLimiter.Enabled() {
		token, locked, lockErr := s.dealLimiter.TryLockDeal(ctx, dealID)
		if lockErr != nil {
			logger.FromContext(ctx).Warn("deal amend lock failed", zap.Error(lockErr))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !locked {
			AbortWithError(c, ErrDealLocked)
			return
		}
		defer func() {
			if releaseErr := s.dealLimiter.ReleaseDeal(ctx, dealID, token); releaseErr != nil {
				logger.FromContext(ctx).Warn("deal amend unlock failed", zap.Error(releaseErr))
			}
		}()
	}

	resp, err := s.dealSvc.Amend(ctx, dealdomain.AmendDealRequest{
		ID:            dealID,
		AnnualPremium: req.AnnualPremium,
		InsuranceType: strings.TrimSpace(req.InsuranceType),
		EffectiveDate: effectiveDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDealByID(c *gin.Context) {
	resp, err := s.dealSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteDeal(c *gin.Context) {
	if err := s.dealSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) ListDealSplits(c *gin.Context) {
	dealID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, dealdomain.ErrInvalidID)
		return
	}

	resp, err := s.commissionSvc.ListByDeal(c.Request.Context(), dealID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDealAudits(c *gin.Context) {
	dealID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, dealdomain.ErrInvalidID)
		return
	}

	resp, err := s.commissionSvc.ListAuditsByDeal(c.Request.Context(), dealID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyDeal(c *gin.Context) {
	dealID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, dealdomain.ErrInvalidID)
		return
	}

	if err := s.commissionSvc.VerifyDeal(c.Request.Context(), dealID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"consistent": true}})
}

type previewSplitsRequest struct {
	AgentID       string          `json:"agent_id"`
	CarrierID     string          `json:"carrier_id"`
	AnnualPremium decimal.Decimal `json:"annual_premium"`
	InsuranceType string          `json:"insurance_type"`
}

func (s *Server) PreviewSplits(c *gin.Context) {
	var req previewSplitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commissionSvc.Preview(c.Request.Context(), commissiondomain.PreviewRequest{
		AgentID:       strings.TrimSpace(req.AgentID),
		CarrierID:     strings.TrimSpace(req.CarrierID),
		AnnualPremium: req.AnnualPremium,
		InsuranceType: strings.TrimSpace(req.InsuranceType),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type sweepDealsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) SweepDeals(c *gin.Context) {
	var req sweepDealsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	from, err := parseOptionalTime(req.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(req.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	now := s.clock.Now()
	fromTime := now.AddDate(0, 0, -7)
	toTime := now
	if from != nil {
		fromTime = *from
	}
	if to != nil {
		toTime = *to
	}
	if !fromTime.Before(toTime) {
		AbortWithError(c, newValidationError("from", "invalid_range", "from must precede to"))
		return
	}
	resp, err := s.commissionSvc.SweepRange(c.Request.Context(), fromTime, toTime)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
