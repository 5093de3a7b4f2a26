// Package pipeline orchestrates the migration stages: extract stages SAP
// data into Postgres, transform resolves the cross-system mapping, load
// creates the indicators in APM and reconciles what landed.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"asset-migrator/internal/clients/acf"
	"asset-migrator/internal/clients/apm"
	"asset-migrator/internal/clients/erp"
	"asset-migrator/internal/common/config"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/common/metrics"
	"asset-migrator/internal/store"
)

// Pipeline runs the migration stages for one tenant.
type Pipeline struct {
	cfg   *config.Config
	store *store.Store
	acf   *acf.Client
	apm   *apm.Client
	erp   *erp.Client
	log   logger.Logger
	runID string
}

// New wires a pipeline over already constructed clients.
func New(cfg *config.Config, st *store.Store, acfClient *acf.Client, apmClient *apm.Client, erpClient *erp.Client, log logger.Logger) *Pipeline {
	runID := uuid.NewString()
	return &Pipeline{
		cfg:   cfg,
		store: st,
		acf:   acfClient,
		apm:   apmClient,
		erp:   erpClient,
		log:   log.WithFields(map[string]interface{}{"run": runID}),
		runID: runID,
	}
}

// RunID identifies this pipeline invocation in logs and metrics.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Status reports the tenant's row count per staging table, plus the
// transform and reconciliation view sizes.
func (p *Pipeline) Status(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(store.AllTables)+2)

	for _, table := range store.AllTables {
		count, err := p.store.Count(ctx, table.Name)
		if err != nil {
			return nil, err
		}
		counts[table.Name] = count
	}

	for _, view := range []string{store.ViewTransformIndicators.Name, store.ViewPostLoadIndicators.Name} {
		count, err := p.store.Count(ctx, view)
		if err != nil {
			return nil, err
		}
		counts[view] = count
	}
	return counts, nil
}

// stage times one pipeline stage; call the returned func when it ends.
func (p *Pipeline) stage(name string) func() {
	started := time.Now()
	p.log.Info("stage started", map[string]interface{}{"stage": name})
	return func() {
		elapsed := time.Since(started)
		metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		p.log.Info("stage finished", map[string]interface{}{
			"stage":   name,
			"seconds": elapsed.Seconds(),
		})
	}
}
