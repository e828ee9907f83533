package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	"github.com/shopspring/decimal"
)

type createCarrierRequest struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

func (s *Server) CreateCarrier(c *gin.Context) {
	var req createCarrierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.carrierSvc.CreateCarrier(c.Request.Context(), carrierdomain.CreateCarrierRequest{
		Name:  strings.TrimSpace(req.Name),
		Lines: req.Lines,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCarriers(c *gin.Context) {
	resp, err := s.carrierSvc.ListCarriers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCarrierByID(c *gin.Context) {
	resp, err := s.carrierSvc.GetCarrier(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type upsertRateRequest struct {
	AgentID     string          `json:"agent_id"`
	AgentRate   decimal.Decimal `json:"agent_rate"`
	ManagerRate decimal.Decimal `json:"manager_rate"`
}

func (s *Server) UpsertCarrierRate(c *gin.Context) {
	var req upsertRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.carrierSvc.UpsertRate(c.Request.Context(), carrierdomain.UpsertRateRequest{
		AgentID:     strings.TrimSpace(req.AgentID),
		CarrierID:   strings.TrimSpace(c.Param("id")),
		AgentRate:   req.AgentRate,
		ManagerRate: req.ManagerRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAgentRates(c *gin.Context) {
	resp, err := s.carrierSvc.ListRates(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
