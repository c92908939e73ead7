package invitation

import (
	"github.com/smallbiznis/tenantry/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation.service",
	fx.Provide(service.NewService),
)
