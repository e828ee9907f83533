package downline

import (
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/downline/service"
	"go.uber.org/fx"
)

var Module = fx.Module("downline.service",
	fx.Provide(service.New),
)
