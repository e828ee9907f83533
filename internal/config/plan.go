package config

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Unclaimed-percent policies for the pool share left above the highest
// earning ancestor.
const (
	UnclaimedForfeit = "forfeit"
	UnclaimedHouse   = "house"
)

// Rank maps a commission level to its display label.
type Rank struct {
	Level int    `mapstructure:"level" json:"level"`
	Label string `mapstructure:"label" json:"label"`
}

// CommissionPlan is the hot-reloadable commission policy: rank table,
// FYC defaults, ownership cap, unclaimed-percent routing and traversal
// bounds.
type CommissionPlan struct {
	OwnershipCap int    `mapstructure:"ownershipCap"`
	Ranks        []Rank `mapstructure:"ranks"`

	LifeFYCRate   float64 `mapstructure:"lifeFycRate"`
	HealthFYCRate float64 `mapstructure:"healthFycRate"`

	UnclaimedPolicy string `mapstructure:"unclaimedPolicy"`
	HouseAgentCode  string `mapstructure:"houseAgentCode"`

	MaxUplineDepth int `mapstructure:"maxUplineDepth"`
	DepthCeiling   int `mapstructure:"depthCeiling"`
	SearchCap      int `mapstructure:"searchCap"`
}

func DefaultCommissionPlan() CommissionPlan {
	return CommissionPlan{
		OwnershipCap: 130,
		Ranks: []Rank{
			{Level: 70, Label: "Prodigy"},
			{Level: 80, Label: "BA"},
			{Level: 90, Label: "SA"},
			{Level: 100, Label: "GA"},
			{Level: 110, Label: "MGA"},
			{Level: 120, Label: "Partner"},
			{Level: 130, Label: "AO"},
		},
		LifeFYCRate:     1.0,
		HealthFYCRate:   0.5,
		UnclaimedPolicy: UnclaimedForfeit,
		MaxUplineDepth:  16,
		DepthCeiling:    64,
		SearchCap:       50,
	}
}

// RankLabel resolves the display label for a level, falling back to the
// numeric level for anything outside the table.
func (p CommissionPlan) RankLabel(level int) string {
	for _, rank := range p.Ranks {
		if rank.Level == level {
			return rank.Label
		}
	}
	return fmt.Sprintf("L%d", level)
}

// ValidLevel reports whether the level appears in the rank table.
func (p CommissionPlan) ValidLevel(level int) bool {
	for _, rank := range p.Ranks {
		if rank.Level == level {
			return true
		}
	}
	return false
}

type PlanHolder struct {
	current atomic.Value // holds CommissionPlan
}

// NewStaticPlanHolder wraps a fixed plan; used in tests.
func NewStaticPlanHolder(plan CommissionPlan) *PlanHolder {
	holder := &PlanHolder{}
	holder.current.Store(plan)
	return holder
}

func NewPlanHolder() (*PlanHolder, error) {
	v := viper.New()

	v.SetConfigName("commission")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/everguard/config") // Volume-mounted config
	v.AddConfigPath("/etc/everguard")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("EVERGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCommissionPlan()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("commission", defaults)
	}

	plan := defaults
	if err := v.UnmarshalKey("commission", &plan); err != nil {
		return nil, err
	}
	applyPlanDefaults(&plan, defaults)
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	holder := &PlanHolder{}
	holder.current.Store(plan)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := defaults
		if err := v.UnmarshalKey("commission", &updated); err != nil {
			log.Printf("[commission-plan] reload failed: %v", err)
			return
		}
		applyPlanDefaults(&updated, defaults)
		if err := validatePlan(updated); err != nil {
			log.Printf("[commission-plan] invalid plan ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[commission-plan] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PlanHolder) Get() CommissionPlan {
	return h.current.Load().(CommissionPlan)
}

func applyPlanDefaults(plan *CommissionPlan, defaults CommissionPlan) {
	if plan.OwnershipCap == 0 {
		plan.OwnershipCap = defaults.OwnershipCap
	}
	if len(plan.Ranks) == 0 {
		plan.Ranks = defaults.Ranks
	}
	if plan.LifeFYCRate == 0 {
		plan.LifeFYCRate = defaults.LifeFYCRate
	}
	if plan.HealthFYCRate == 0 {
		plan.HealthFYCRate = defaults.HealthFYCRate
	}
	if strings.TrimSpace(plan.UnclaimedPolicy) == "" {
		plan.UnclaimedPolicy = defaults.UnclaimedPolicy
	}
	if plan.MaxUplineDepth == 0 {
		plan.MaxUplineDepth = defaults.MaxUplineDepth
	}
	if plan.DepthCeiling == 0 {
		plan.DepthCeiling = defaults.DepthCeiling
	}
	if plan.SearchCap == 0 {
		plan.SearchCap = defaults.SearchCap
	}
}

func validatePlan(plan CommissionPlan) error {
	if len(plan.Ranks) == 0 {
		return errors.New("commission.ranks cannot be empty")
	}
	levels := make([]int, 0, len(plan.Ranks))
	for _, rank := range plan.Ranks {
		if rank.Level <= 0 {
			return fmt.Errorf("commission.ranks level %d must be positive", rank.Level)
		}
		levels = append(levels, rank.Level)
	}
	sort.Ints(levels)
	if plan.OwnershipCap < levels[len(levels)-1] {
		return fmt.Errorf("commission.ownershipCap %d below top rank level %d", plan.OwnershipCap, levels[len(levels)-1])
	}
	if plan.LifeFYCRate <= 0 || plan.HealthFYCRate <= 0 {
		return errors.New("commission FYC rates must be positive")
	}
	switch plan.UnclaimedPolicy {
	case UnclaimedForfeit:
	case UnclaimedHouse:
		if strings.TrimSpace(plan.HouseAgentCode) == "" {
			return errors.New("commission.houseAgentCode is required for the house policy")
		}
	default:
		return fmt.Errorf("unknown commission.unclaimedPolicy %q", plan.UnclaimedPolicy)
	}
	if plan.MaxUplineDepth <= 0 || plan.DepthCeiling <= 0 {
		return errors.New("commission depth bounds must be positive")
	}
	if plan.SearchCap <= 0 {
		return errors.New("commission.searchCap must be positive")
	}
	return nil
}
