package commission

import (
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(service.New),
)
