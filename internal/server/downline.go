package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	downlinedomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/downline/domain"
)

func (s *Server) GetDownline(c *gin.Context) {
	rootID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, agentdomain.ErrInvalidID)
		return
	}

	strict, err := parseOptionalBool(c.Query("strict"))
	if err != nil {
		AbortWithError(c, newValidationError("strict", "invalid_strict", "invalid strict"))
		return
	}

	if strict != nil && *strict {
		ids, err := s.downlineSvc.DescendantsStrict(c.Request.Context(), rootID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": downlinedomain.Walk{IDs: ids}})
		return
	}

	walk, err := s.downlineSvc.Descendants(c.Request.Context(), rootID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": walk})
}

func (s *Server) GetDownlineStats(c *gin.Context) {
	rootID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, agentdomain.ErrInvalidID)
		return
	}

	dr, err := parseDownlineDateRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.downlineSvc.SubtreeStats(c.Request.Context(), rootID, dr)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SearchDownline(c *gin.Context) {
	rootID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, agentdomain.ErrInvalidID)
		return
	}

	dr, err := parseDownlineDateRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	level, err := parseOptionalInt64(c.Query("level"))
	if err != nil {
		AbortWithError(c, newValidationError("level", "invalid_level", "invalid level"))
		return
	}

	filter := downlinedomain.SearchFilter{
		Query: strings.TrimSpace(c.Query("q")),
	}
	if level != nil {
		value := int(*level)
		filter.Level = &value
	}

	resp, err := s.downlineSvc.SearchDownline(c.Request.Context(), rootID, filter, dr)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseDownlineDateRange(c *gin.Context) (downlinedomain.DateRange, error) {
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		return downlinedomain.DateRange{}, newValidationError("from", "invalid_from", "invalid from")
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		return downlinedomain.DateRange{}, newValidationError("to", "invalid_to", "invalid to")
	}
	return downlinedomain.DateRange{From: from, To: to}, nil
}
