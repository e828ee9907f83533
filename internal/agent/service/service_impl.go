package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Plan  *config.PlanHolder
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	plan  *config.PlanHolder
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("agent.service"),
		genID: p.GenID,
		plan:  p.Plan,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAgentRequest) (domain.Agent, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Agent{}, domain.ErrInvalidName
	}

	plan := s.plan.Get()
	if !plan.ValidLevel(req.CommissionLevel) {
		return domain.Agent{}, domain.ErrInvalidLevel
	}

	if req.UplineID != nil {
		upline, err := s.repo.FindByID(ctx, s.db, *req.UplineID)
		if err != nil {
			return domain.Agent{}, err
		}
		if upline == nil {
			return domain.Agent{}, domain.ErrUplineNotFound
		}
	}

	now := time.Now().UTC()
	agent := domain.Agent{
		ID:              s.genID.Generate(),
		Name:            name,
		Code:            slug.Make(name),
		CommissionLevel: req.CommissionLevel,
		UplineID:        req.UplineID,
		Status:          domain.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &agent); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return domain.Agent{}, err
		}
		// Slug collision on the name: disambiguate with the id tail.
		agent.Code = fmt.Sprintf("%s-%s", agent.Code, shortID(agent.ID))
		if err := s.repo.Insert(ctx, s.db, &agent); err != nil {
			return domain.Agent{}, err
		}
	}

	return agent, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Agent, error) {
	agentID, err := parseID(id)
	if err != nil {
		return domain.Agent{}, domain.ErrInvalidID
	}
	agent, err := s.repo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return domain.Agent{}, err
	}
	if agent == nil {
		return domain.Agent{}, domain.ErrNotFound
	}
	return *agent, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAgentRequest) (domain.ListAgentResponse, error) {
	filter := domain.ListAgentFilter{
		Level: req.Level,
		Query: strings.TrimSpace(req.Query),
	}
	if status := domain.Status(strings.ToUpper(strings.TrimSpace(req.Status))); status != "" {
		if !status.Valid() {
			return domain.ListAgentResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	agents, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return domain.ListAgentResponse{}, err
	}

	resp := domain.ListAgentResponse{Agents: make([]domain.Agent, 0, len(agents))}
	for _, agent := range agents {
		resp.Agents = append(resp.Agents, *agent)
	}
	return resp, nil
}

// SetLevel changes the agent's commission level going forward. Splits
// already persisted keep the levels in effect when their deals were
// written.
func (s *Service) SetLevel(ctx context.Context, req domain.SetLevelRequest) (domain.Agent, error) {
	agentID, err := parseID(req.ID)
	if err != nil {
		return domain.Agent{}, domain.ErrInvalidID
	}

	plan := s.plan.Get()
	if !plan.ValidLevel(req.Level) {
		return domain.Agent{}, domain.ErrInvalidLevel
	}

	agent, err := s.repo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return domain.Agent{}, err
	}
	if agent == nil {
		return domain.Agent{}, domain.ErrNotFound
	}

	now := time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, agentID, map[string]any{
		"commission_level": req.Level,
		"updated_at":       now,
	}); err != nil {
		return domain.Agent{}, err
	}

	agent.CommissionLevel = req.Level
	agent.UpdatedAt = now
	return *agent, nil
}

// AssignUpline re-parents an agent. The new upline must not be the
// agent itself or any of its descendants, otherwise the forest
// invariant breaks.
func (s *Service) AssignUpline(ctx context.Context, req domain.AssignUplineRequest) (domain.Agent, error) {
	agentID, err := parseID(req.ID)
	if err != nil {
		return domain.Agent{}, domain.ErrInvalidID
	}

	agent, err := s.repo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return domain.Agent{}, err
	}
	if agent == nil {
		return domain.Agent{}, domain.ErrNotFound
	}

	var uplineID *snowflake.ID
	if strings.TrimSpace(req.UplineID) != "" {
		parsed, err := parseID(req.UplineID)
		if err != nil {
			return domain.Agent{}, domain.ErrInvalidID
		}
		if parsed == agentID {
			return domain.Agent{}, domain.ErrCycleDetected
		}

		upline, err := s.repo.FindByID(ctx, s.db, parsed)
		if err != nil {
			return domain.Agent{}, err
		}
		if upline == nil {
			return domain.Agent{}, domain.ErrUplineNotFound
		}

		if err := s.ensureNotDescendant(ctx, agentID, upline); err != nil {
			return domain.Agent{}, err
		}
		uplineID = &parsed
	}

	now := time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, agentID, map[string]any{
		"upline_id":  uplineID,
		"updated_at": now,
	}); err != nil {
		return domain.Agent{}, err
	}

	agent.UplineID = uplineID
	agent.UpdatedAt = now
	return *agent, nil
}

func (s *Service) SetStatus(ctx context.Context, req domain.SetStatusRequest) (domain.Agent, error) {
	agentID, err := parseID(req.ID)
	if err != nil {
		return domain.Agent{}, domain.ErrInvalidID
	}
	if !req.Status.Valid() {
		return domain.Agent{}, domain.ErrInvalidStatus
	}

	agent, err := s.repo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return domain.Agent{}, err
	}
	if agent == nil {
		return domain.Agent{}, domain.ErrNotFound
	}

	now := time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, agentID, map[string]any{
		"status":     req.Status,
		"updated_at": now,
	}); err != nil {
		return domain.Agent{}, err
	}

	agent.Status = req.Status
	agent.UpdatedAt = now
	return *agent, nil
}

func (s *Service) UplineChain(ctx context.Context, agentID snowflake.ID, maxDepth int) ([]domain.Agent, error) {
	if maxDepth <= 0 {
		maxDepth = s.plan.Get().MaxUplineDepth
	}

	agent, err := s.repo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, domain.ErrNotFound
	}

	chain := make([]domain.Agent, 0, maxDepth)
	visited := map[snowflake.ID]struct{}{agentID: {}}

	current := agent
	for current.UplineID != nil && len(chain) < maxDepth {
		next := *current.UplineID
		if _, seen := visited[next]; seen {
			s.log.Error("upline cycle detected",
				zap.String("agent_id", agentID.String()),
				zap.String("revisited_id", next.String()),
			)
			return nil, domain.ErrCycleDetected
		}
		visited[next] = struct{}{}

		upline, err := s.repo.FindByID(ctx, s.db, next)
		if err != nil {
			return nil, err
		}
		if upline == nil {
			// Dangling weak reference: treat the walk as ended.
			break
		}
		chain = append(chain, *upline)
		current = upline
	}

	return chain, nil
}

// ensureNotDescendant walks up from the proposed upline; reaching the
// agent means the upline sits inside the agent's own subtree.
func (s *Service) ensureNotDescendant(ctx context.Context, agentID snowflake.ID, upline *domain.Agent) error {
	ceiling := s.plan.Get().DepthCeiling
	visited := map[snowflake.ID]struct{}{upline.ID: {}}

	current := upline
	for depth := 0; current.UplineID != nil && depth < ceiling; depth++ {
		next := *current.UplineID
		if next == agentID {
			return domain.ErrCycleDetected
		}
		if _, seen := visited[next]; seen {
			return domain.ErrCycleDetected
		}
		visited[next] = struct{}{}

		parent, err := s.repo.FindByID(ctx, s.db, next)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		current = parent
	}
	return nil
}

func shortID(id snowflake.ID) string {
	str := id.String()
	if len(str) <= 6 {
		return str
	}
	return str[len(str)-6:]
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
