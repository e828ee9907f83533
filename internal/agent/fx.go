package agent

import (
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/repository"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("agent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
