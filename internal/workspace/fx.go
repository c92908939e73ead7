package workspace

import (
	"github.com/smallbiznis/tenantry/internal/workspace/repository"
	"github.com/smallbiznis/tenantry/internal/workspace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
