package carrier

import (
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/repository"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("carrier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
