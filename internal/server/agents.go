package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db/pagination"
)

type createAgentRequest struct {
	Name            string `json:"name"`
	CommissionLevel int    `json:"commission_level"`
	UplineID        string `json:"upline_id"`
}

func (s *Server) CreateAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	uplineID, err := parseOptionalSnowflakeID(req.UplineID)
	if err != nil {
		AbortWithError(c, newValidationError("upline_id", "invalid_upline_id", "invalid upline_id"))
		return
	}

	resp, err := s.agentSvc.Create(c.Request.Context(), agentdomain.CreateAgentRequest{
		Name:            strings.TrimSpace(req.Name),
		CommissionLevel: req.CommissionLevel,
		UplineID:        uplineID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAgents(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
		Level  int    `form:"level"`
		Query  string `form:"q"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.agentSvc.List(c.Request.Context(), agentdomain.ListAgentRequest{
		Pagination: query.Pagination,
		Status:     strings.TrimSpace(query.Status),
		Level:      query.Level,
		Query:      strings.TrimSpace(query.Query),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAgentByID(c *gin.Context) {
	resp, err := s.agentSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetAgentLevel(c *gin.Context) {
	var req struct {
		Level int `json:"level"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.agentSvc.SetLevel(c.Request.Context(), agentdomain.SetLevelRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Level: req.Level,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AssignAgentUpline(c *gin.Context) {
	var req struct {
		UplineID string `json:"upline_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.agentSvc.AssignUpline(c.Request.Context(), agentdomain.AssignUplineRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		UplineID: strings.TrimSpace(req.UplineID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetAgentStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.agentSvc.SetStatus(c.Request.Context(), agentdomain.SetStatusRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Status: agentdomain.Status(strings.ToUpper(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetUplineChain(c *gin.Context) {
	agentID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, agentdomain.ErrInvalidID)
		return
	}

	plan := s.planDepth()
	chain, err := s.agentSvc.UplineChain(c.Request.Context(), agentID, plan)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": chain})
}
