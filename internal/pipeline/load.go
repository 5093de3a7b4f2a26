package pipeline

import (
	"context"
	"strings"

	"asset-migrator/internal/clients/apm"
	"asset-migrator/internal/common/metrics"
	"asset-migrator/internal/store"
	"asset-migrator/internal/transform"
)

// Load creates the missing indicator positions in APM, then creates the
// indicators from the valid pre-load rows and records what landed. Rows
// whose indicator already exists in APM are skipped, so the stage can be
// rerun after partial failures.
func (p *Pipeline) Load(ctx context.Context) error {
	defer p.stage("load")()

	created, err := p.ensurePositions(ctx)
	if err != nil {
		return err
	}
	if created > 0 {
		// New positions change the resolution views, so the pre-load
		// mapping has to be rebuilt before indicators are created.
		if err := p.materializePreLoad(ctx); err != nil {
			return err
		}
	}

	if err := p.stageLoadRows(ctx); err != nil {
		return err
	}
	return p.createIndicators(ctx)
}

// ensurePositions creates every decided position that resolved to no APM
// GUID, double-checking by name before creating. Created positions are
// appended to the staged catalog so the views resolve them.
func (p *Pipeline) ensurePositions(ctx context.Context) (int, error) {
	missing, err := p.store.Select(ctx, store.ViewAPMIndicatorPositions.Name,
		[]string{"APMIndicatorPosition"}, `"apm_guid" IS NULL AND "APMIndicatorPosition" IS NOT NULL`)
	if err != nil {
		return 0, err
	}

	seen := map[string]bool{}
	var catalog []map[string]string

	for _, row := range missing {
		name := strings.ToUpper(row["APMIndicatorPosition"])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		position, err := p.apm.GetIndicatorPositionByName(ctx, name)
		if err != nil {
			return 0, err
		}
		if position == nil {
			position, err = p.apm.CreateIndicatorPosition(ctx, name)
			if err != nil {
				return 0, err
			}
			metrics.RowsLoaded.WithLabelValues("indicator_positions").Inc()
		}

		catalog = append(catalog, map[string]string{
			"ID":   position.ID,
			"SSID": position.SSID,
			"name": position.Name,
		})
	}

	if len(catalog) == 0 {
		return 0, nil
	}
	if err := p.store.InsertBatch(ctx, store.APMIndicatorPositions, catalog); err != nil {
		return 0, err
	}
	p.log.Info("positions ensured", map[string]interface{}{"count": len(catalog)})
	return len(catalog), nil
}

// stageLoadRows rewrites the load table from the valid pre-load rows, in
// the field layout of the indicator create API.
func (p *Pipeline) stageLoadRows(ctx context.Context) error {
	preload, err := p.store.Select(ctx, store.PreLoadIndicators.Name, []string{
		"externalId", "technicalObject_type", "ssid",
		"APMIndicatorCategory", "CharcInternalID", "apm_guid", "valid",
	}, "")
	if err != nil {
		return err
	}

	loadRows := make([]map[string]string, 0, len(preload))
	for _, row := range preload {
		loadRows = append(loadRows, map[string]string{
			"technicalObject_number":                    row["externalId"],
			"technicalObject_type":                      row["technicalObject_type"],
			"technicalObject_SSID":                      row["ssid"],
			"category_name":                             row["APMIndicatorCategory"],
			"category_SSID":                             row["ssid"],
			"characteristics_characteristicsInternalId": row["CharcInternalID"],
			"characteristics_SSID":                      row["ssid"],
			"positionDetails_ID":                        row["apm_guid"],
			"valid":                                     row["valid"],
		})
	}

	if err := p.store.Truncate(ctx, store.LoadIndicators); err != nil {
		return err
	}
	return p.store.InsertBatch(ctx, store.LoadIndicators, loadRows)
}

// createIndicators walks the valid load rows, skips the ones APM already
// has, creates the rest, and stages everything read back as post-load rows.
func (p *Pipeline) createIndicators(ctx context.Context) error {
	loadRows, err := p.store.Select(ctx, store.LoadIndicators.Name,
		store.LoadIndicators.Columns, `"valid" = 'X'`)
	if err != nil {
		return err
	}

	var postload []map[string]string
	created, skipped := 0, 0

	for _, row := range loadRows {
		req := apm.IndicatorRequest{
			TechnicalObjectNumber: row["technicalObject_number"],
			TechnicalObjectSSID:   row["technicalObject_SSID"],
			TechnicalObjectType:   row["technicalObject_type"],
			CategorySSID:          row["category_SSID"],
			CategoryName:          row["category_name"],
			CharacteristicsSSID:   row["characteristics_SSID"],
			CharacteristicsID:     row["characteristics_characteristicsInternalId"],
			PositionDetailsID:     row["positionDetails_ID"],
		}

		existing, err := p.apm.SearchIndicator(ctx, req)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			skipped++
			postload = append(postload, transform.FlattenAll(existing)...)
			continue
		}

		indicator, err := p.apm.CreateIndicator(ctx, req)
		if err != nil {
			return err
		}
		created++
		metrics.RowsLoaded.WithLabelValues("indicators").Inc()
		postload = append(postload, transform.Flatten(indicator))
	}

	p.log.Info("indicators loaded", map[string]interface{}{
		"created": created,
		"skipped": skipped,
	})

	if err := p.store.Truncate(ctx, store.PostLoadIndicators); err != nil {
		return err
	}
	return p.store.InsertBatch(ctx, store.PostLoadIndicators, postload)
}
