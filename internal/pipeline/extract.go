package pipeline

import (
	"context"

	"asset-migrator/internal/sap"
	"asset-migrator/internal/store"
	"asset-migrator/internal/transform"
)

// Extract pulls the master data of all connected systems into the staging
// tables. Each table is truncated for the tenant before its fresh rows land,
// so reruns replace rather than accumulate.
func (p *Pipeline) Extract(ctx context.Context) error {
	defer p.stage("extract")()

	if err := p.extractObjects(ctx); err != nil {
		return err
	}
	if err := p.extractTemplates(ctx); err != nil {
		return err
	}
	if err := p.extractExternalData(ctx); err != nil {
		return err
	}
	if err := p.extractPositions(ctx); err != nil {
		return err
	}
	return p.extractCharacteristics(ctx)
}

func (p *Pipeline) extractObjects(ctx context.Context) error {
	equipments, err := p.acf.GetEquipments(ctx, "")
	if err != nil {
		return err
	}
	if err := p.replace(ctx, store.EquipmentHeader, equipments); err != nil {
		return err
	}

	flocs, err := p.acf.GetFunctionalLocations(ctx, "")
	if err != nil {
		return err
	}
	return p.replace(ctx, store.FlocHeader, flocs)
}

// extractTemplates stages the model-to-template assignments and, per
// template, the header, indicator groups and indicators.
func (p *Pipeline) extractTemplates(ctx context.Context) error {
	equModels, err := p.acf.GetEquipmentModels(ctx)
	if err != nil {
		return err
	}
	if err := p.stageTemplates(ctx, equModels, "id",
		store.EquModelTemplates, store.EquTemplateHeader,
		store.EquIndicatorGroups, store.EquIndicators); err != nil {
		return err
	}

	flocModels, err := p.acf.GetFlocModels(ctx)
	if err != nil {
		return err
	}
	return p.stageTemplates(ctx, flocModels, "flocId",
		store.FlocModelTemplates, store.FlocTemplateHeader,
		store.FlocIndicatorGroups, store.FlocIndicators)
}

func (p *Pipeline) stageTemplates(ctx context.Context, models []sap.Row, objectKey string,
	templatesTable, headerTable, groupsTable, indicatorsTable store.Table) error {

	modelTemplates := transform.Explode(models, "templates")
	if err := p.replace(ctx, templatesTable, modelTemplates); err != nil {
		return err
	}

	var headers, groups, indicators []sap.Row
	seen := map[string]bool{}

	for _, row := range modelTemplates {
		templateID := transform.Stringify(row["templates_id"])
		if templateID == "" || seen[templateID] {
			continue
		}
		seen[templateID] = true

		sections, err := p.acf.GetTemplate(ctx, templateID)
		if err != nil {
			return err
		}

		for _, section := range sections {
			section["templateId"] = templateID
			headers = append(headers, section)

			sectionGroups := transform.Explode([]sap.Row{section}, "indicatorGroups")
			for _, group := range sectionGroups {
				if group["indicatorGroups_id"] == nil {
					continue
				}
				groups = append(groups, group)
				indicators = append(indicators, explodeGroupIndicators(group, objectKey)...)
			}
		}
	}

	if err := p.replace(ctx, headerTable, headers); err != nil {
		return err
	}
	if err := p.replace(ctx, groupsTable, groups); err != nil {
		return err
	}
	return p.replace(ctx, indicatorsTable, indicators)
}

// explodeGroupIndicators expands the indicators of one indicator group into
// rows keyed by template, object and group, with indicators_* columns.
func explodeGroupIndicators(group sap.Row, objectKey string) []sap.Row {
	elements, _ := group["indicatorGroups_indicators"].([]interface{})
	rows := make([]sap.Row, 0, len(elements))

	for _, element := range elements {
		indicator, ok := element.(map[string]interface{})
		if !ok {
			continue
		}
		row := sap.Row{
			"templateId":                 group["templateId"],
			objectKey:                    group[objectKey],
			"indicatorGroups_id":         group["indicatorGroups_id"],
			"indicatorGroups_internalId": group["indicatorGroups_internalId"],
			"indicators":                 []interface{}{indicator},
		}
		rows = append(rows, transform.Explode([]sap.Row{row}, "indicators")...)
	}
	return rows
}

func (p *Pipeline) extractExternalData(ctx context.Context) error {
	batchSize := p.cfg.Migration.ExternalBatchSize

	equData, err := p.acf.GetExternalData(ctx, "objectType eq 'EQU'", batchSize)
	if err != nil {
		return err
	}
	if err := p.replace(ctx, store.ExternalDataEqu, equData); err != nil {
		return err
	}

	flocData, err := p.acf.GetExternalData(ctx, "objectType eq 'FLOC'", batchSize)
	if err != nil {
		return err
	}
	return p.replace(ctx, store.ExternalDataFloc, flocData)
}

func (p *Pipeline) extractPositions(ctx context.Context) error {
	positions, err := p.apm.GetIndicatorPositions(ctx)
	if err != nil {
		return err
	}
	return p.replace(ctx, store.APMIndicatorPositions, positions)
}

func (p *Pipeline) extractCharacteristics(ctx context.Context) error {
	characteristics, err := p.erp.GetCharacteristics(ctx)
	if err != nil {
		return err
	}
	return p.replace(ctx, store.ERPCharacteristics, characteristics)
}

// replace truncates the tenant's rows of a table and bulk-inserts the
// flattened records.
func (p *Pipeline) replace(ctx context.Context, table store.Table, rows []sap.Row) error {
	if err := p.store.Truncate(ctx, table); err != nil {
		return err
	}
	return p.store.InsertBatch(ctx, table, transform.FlattenAll(rows))
}
