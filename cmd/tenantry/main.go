package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/auth"
	"github.com/smallbiznis/tenantry/internal/authorization"
	"github.com/smallbiznis/tenantry/internal/billing"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/config"
	"github.com/smallbiznis/tenantry/internal/dashboard"
	"github.com/smallbiznis/tenantry/internal/invitation"
	"github.com/smallbiznis/tenantry/internal/member"
	"github.com/smallbiznis/tenantry/internal/migration"
	"github.com/smallbiznis/tenantry/internal/observability"
	"github.com/smallbiznis/tenantry/internal/providers/email"
	"github.com/smallbiznis/tenantry/internal/ratelimit"
	"github.com/smallbiznis/tenantry/internal/server"
	"github.com/smallbiznis/tenantry/internal/workspace"
	"github.com/smallbiznis/tenantry/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		auth.Module,
		authorization.Module,
		workspace.Module,
		member.Module,
		invitation.Module,
		billing.Module,
		dashboard.Module,
		email.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
