package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	payoutdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/payout/domain"
)

func (s *Server) GetPersonalPayouts(c *gin.Context) {
	agentID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, agentdomain.ErrInvalidID)
		return
	}

	week, err := parseWeekParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.PersonalPayouts(c.Request.Context(), agentID, week)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTeamPayouts(c *gin.Context) {
	managerID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, agentdomain.ErrInvalidID)
		return
	}

	week, err := parseWeekParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.TeamPayouts(c.Request.Context(), managerID, week)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCompanyRollup(c *gin.Context) {
	dr, err := parsePayoutDateRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.payoutSvc.CompanyRollup(c.Request.Context(), dr)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProductionRank(c *gin.Context) {
	agentID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, agentdomain.ErrInvalidID)
		return
	}

	dr, err := parsePayoutDateRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rank, err := s.payoutSvc.ProductionRank(c.Request.Context(), agentID, dr)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"rank": rank}})
}

func parseWeekParam(c *gin.Context) (time.Time, error) {
	week, err := parseOptionalTime(c.Query("week"), false)
	if err != nil {
		return time.Time{}, newValidationError("week", "invalid_week", "invalid week")
	}
	if week == nil {
		return time.Time{}, nil
	}
	return *week, nil
}

func parsePayoutDateRange(c *gin.Context) (payoutdomain.DateRange, error) {
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		return payoutdomain.DateRange{}, newValidationError("from", "invalid_from", "invalid from")
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		return payoutdomain.DateRange{}, newValidationError("to", "invalid_to", "invalid to")
	}
	return payoutdomain.DateRange{From: from, To: to}, nil
}
