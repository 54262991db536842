package server

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/routes/duplicates"
	"github.com/Ramsey-B/clover/pkg/routes/graph"
	"github.com/Ramsey-B/clover/pkg/routes/matchconfig"
	"github.com/Ramsey-B/clover/pkg/routes/reconciliation"
)

// Dependencies are resolved by the route handlers from the request context.
// A nil Graph leaves the graph routes answering 503.
type Dependencies struct {
	Dedupe          duplicates.Service
	MatchConfigs    matchconfig.Store
	Reconciliations reconciliation.Store
	Graph           graph.Neighbors
}

// NewContainer registers deps in a new ectoinject container. ectoinject keeps
// containers in a process-wide registry, so every container gets its own ID.
func NewContainer(appName string, deps Dependencies, logger ectologger.Logger) (ectocontainer.DIContainer, error) {
	config := ectoinject.DefaultContainerConfig
	config.ID = fmt.Sprintf("%s-%s", appName, uuid.NewString())
	config.LoggerConfig = &ectocontainer.DIContainerLoggerConfig{
		Prefix:   "ectoinject",
		LogLevel: loglevel.INFO,
		Enabled:  true,
		LogFunc: func(ctx context.Context, level, msg string) {
			log := logger.WithContext(ctx).WithField("container_id", config.ID)
			if level == loglevel.WARN {
				log.Warn(msg)
				return
			}
			log.Debug(msg)
		},
	}

	container, err := ectoinject.NewDIContainer(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dependency container: %w", err)
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return nil, err
	}
	if deps.Dedupe != nil {
		if err := ectoinject.RegisterInstance[duplicates.Service](container, deps.Dedupe); err != nil {
			return nil, err
		}
	}
	if deps.MatchConfigs != nil {
		if err := ectoinject.RegisterInstance[matchconfig.Store](container, deps.MatchConfigs); err != nil {
			return nil, err
		}
	}
	if deps.Reconciliations != nil {
		if err := ectoinject.RegisterInstance[reconciliation.Store](container, deps.Reconciliations); err != nil {
			return nil, err
		}
	}
	if deps.Graph != nil {
		if err := ectoinject.RegisterInstance[graph.Neighbors](container, deps.Graph); err != nil {
			return nil, err
		}
	}
	return container, nil
}
