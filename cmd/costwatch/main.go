package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/outboundiq/costwatch/internal/activity"
	"github.com/outboundiq/costwatch/internal/clock"
	"github.com/outboundiq/costwatch/internal/config"
	"github.com/outboundiq/costwatch/internal/costs"
	"github.com/outboundiq/costwatch/internal/currency"
	"github.com/outboundiq/costwatch/internal/dashboard"
	"github.com/outboundiq/costwatch/internal/lock"
	"github.com/outboundiq/costwatch/internal/migration"
	"github.com/outboundiq/costwatch/internal/observability"
	"github.com/outboundiq/costwatch/internal/providers/slack"
	"github.com/outboundiq/costwatch/internal/scheduler"
	"github.com/outboundiq/costwatch/internal/server"
	"github.com/outboundiq/costwatch/internal/usage"
	"github.com/outboundiq/costwatch/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		migration.Module,

		// Functional domains
		currency.Module,
		slack.Module,
		usage.Module,
		activity.Module,
		costs.Module,
		dashboard.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
