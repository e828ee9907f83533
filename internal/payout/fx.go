package payout

import (
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(service.New),
)
