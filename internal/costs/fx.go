package costs

import (
	"github.com/outboundiq/costwatch/internal/costs/service"
	"go.uber.org/fx"
)

var Module = fx.Module("costs.service",
	fx.Provide(service.NewService),
)
