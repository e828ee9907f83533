package domain

import (
	"context"
	"errors"
	"time"

	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/shopspring/decimal"
)

type CreateDealRequest struct {
	AgentID         string
	CarrierID       string
	AnnualPremium   decimal.Decimal
	InsuranceType   string
	ApplicationDate time.Time
	EffectiveDate   *time.Time
}

// AmendDealRequest changes commission-relevant fields. A nil premium or
// empty type keeps the recorded value.
type AmendDealRequest struct {
	ID            string
	AnnualPremium *decimal.Decimal
	InsuranceType string
	EffectiveDate *time.Time
}

type DealWithSplits struct {
	Deal   Deal                               `json:"deal"`
	Splits []commissiondomain.CommissionSplit `json:"splits"`
}

type Service interface {
	// Create persists the deal and its split batch in one
	// transaction: a deal never exists without complete splits.
	Create(ctx context.Context, req CreateDealRequest) (DealWithSplits, error)

	// Amend re-splits after a premium/type change, replacing the prior
	// batch atomically with the deal update.
	Amend(ctx context.Context, req AmendDealRequest) (DealWithSplits, error)

	GetByID(ctx context.Context, id string) (DealWithSplits, error)

	Delete(ctx context.Context, id string) error
}

var (
	ErrNotFound        = errors.New("deal_not_found")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNothingToAmend  = errors.New("nothing_to_amend")
	ErrCarrierRequired = errors.New("carrier_required")
)
