package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Insurance lines; the FYC default keys off this.
const (
	LineLife   = "LIFE"
	LineHealth = "HEALTH"
)

func ValidLine(line string) bool {
	return line == LineLife || line == LineHealth
}

type CreateCarrierRequest struct {
	Name  string
	Lines []string
}

type UpsertRateRequest struct {
	AgentID     string
	CarrierID   string
	AgentRate   decimal.Decimal
	ManagerRate decimal.Decimal
}

// EffectiveRate carries the FYC fraction used to size a deal's pool and
// where it came from.
type EffectiveRate struct {
	Rate        decimal.Decimal `json:"rate"`
	ManagerRate decimal.Decimal `json:"manager_rate"`
	Overridden  bool            `json:"overridden"`
}

type Service interface {
	CreateCarrier(ctx context.Context, req CreateCarrierRequest) (Carrier, error)
	GetCarrier(ctx context.Context, id string) (Carrier, error)
	ListCarriers(ctx context.Context) ([]Carrier, error)

	UpsertRate(ctx context.Context, req UpsertRateRequest) (CarrierRate, error)
	ListRates(ctx context.Context, agentID string) ([]CarrierRate, error)

	// ResolveRate returns the FYC fraction in effect for the
	// agent/carrier pair and insurance type at call time.
	ResolveRate(ctx context.Context, agentID, carrierID snowflake.ID, insuranceType string) (EffectiveRate, error)
}

var (
	ErrNotFound             = errors.New("carrier_not_found")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidLine          = errors.New("invalid_line")
	ErrInvalidRate          = errors.New("invalid_rate")
	ErrInvalidID            = errors.New("invalid_id")
	ErrUnknownInsuranceType = errors.New("unknown_insurance_type")
)
