package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db/pagination"
)

type CreateAgentRequest struct {
	Name            string
	CommissionLevel int
	UplineID        *snowflake.ID
}

type SetLevelRequest struct {
	ID    string
	Level int
}

type AssignUplineRequest struct {
	ID       string
	UplineID string // empty detaches the agent to a tree root
}

type SetStatusRequest struct {
	ID     string
	Status Status
}

type ListAgentRequest struct {
	pagination.Pagination
	Status string
	Level  int
	Query  string
}

type ListAgentResponse struct {
	pagination.PageInfo
	Agents []Agent `json:"agents"`
}

// Service is the hierarchy store surface: agent admin writes plus the
// read view the commission and downline engines borrow.
type Service interface {
	Create(ctx context.Context, req CreateAgentRequest) (Agent, error)
	GetByID(ctx context.Context, id string) (Agent, error)
	List(ctx context.Context, req ListAgentRequest) (ListAgentResponse, error)
	SetLevel(ctx context.Context, req SetLevelRequest) (Agent, error)
	AssignUpline(ctx context.Context, req AssignUplineRequest) (Agent, error)
	SetStatus(ctx context.Context, req SetStatusRequest) (Agent, error)

	// UplineChain returns the ancestors of an agent nearest-first,
	// capped at maxDepth. A revisited node is fatal input corruption.
	UplineChain(ctx context.Context, agentID snowflake.ID, maxDepth int) ([]Agent, error)
}

var (
	ErrNotFound       = errors.New("agent_not_found")
	ErrUplineNotFound = errors.New("upline_not_found")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidLevel   = errors.New("invalid_level")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidID      = errors.New("invalid_id")
	ErrCycleDetected  = errors.New("hierarchy_cycle_detected")
)
