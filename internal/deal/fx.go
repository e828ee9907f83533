package deal

import (
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deal.service",
	fx.Provide(service.New),
)
