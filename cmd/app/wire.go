//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/evigrid/assess-console/internal/bootstrap"
	"github.com/evigrid/assess-console/internal/domain/assessment"
	"github.com/evigrid/assess-console/internal/domain/auth"
	"github.com/evigrid/assess-console/internal/domain/orders"
	"github.com/evigrid/assess-console/internal/infra/config"
	httpiface "github.com/evigrid/assess-console/internal/interface/http"
	"github.com/evigrid/assess-console/pkg/logger"
	"github.com/evigrid/assess-console/pkg/metrics"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewCounters,
		provideAuthConfig,
		provideAssessmentConfig,
		providePostgresPool,
		provideUserRepository,
		provideOrderRepository,
		provideDraftRepository,
		provideFileStore,
		provideTokenCache,
		provideFileValidator,
		provideSubmissionClient,
		provideOrderRecorder,
		provideRuleEngine,
		auth.NewService,
		orders.NewRegistry,
		assessment.NewService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
