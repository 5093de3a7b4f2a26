package pipeline

import (
	"context"
	"strings"

	"asset-migrator/internal/clients/apm"
	"asset-migrator/internal/store"
)

// Decision sources recorded per mapping value.
const (
	sourcePropose = "propose"
	sourceInput   = "input"
)

// defaultIndicatorCategory is APM's measurement category, the target for
// all migrated template indicators.
const defaultIndicatorCategory = "M"

// Transform seeds the user decision record from the transform views and
// materializes the pre-load rows, resolving APM position GUIDs and ERP
// characteristic IDs through the resolution views.
func (p *Pipeline) Transform(ctx context.Context) error {
	defer p.stage("transform")()

	if err := p.seedDecisions(ctx); err != nil {
		return err
	}
	if err := p.applyDecisions(ctx); err != nil {
		return err
	}
	return p.materializePreLoad(ctx)
}

// seedDecisions fills the decision table with one row per transform result,
// proposing the indicator group description as the APM position and the
// indicator internal ID as the ERP characteristic. Manual inputs entered on
// existing rows survive the reseed by key.
func (p *Pipeline) seedDecisions(ctx context.Context) error {
	rows, err := p.store.Select(ctx, store.ViewTransformIndicators.Name,
		transformViewColumns(), "")
	if err != nil {
		return err
	}

	inputs, err := p.collectInputs(ctx)
	if err != nil {
		return err
	}

	if err := p.store.Truncate(ctx, store.UDRIndicators); err != nil {
		return err
	}

	decisions := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		decision := make(map[string]string, len(row)+12)
		for key, value := range row {
			decision[key] = value
		}

		decision["propose_APMIndicatorPosition"] = strings.ToUpper(row["indicatorGroups_description_short"])
		decision["propose_ERPCharacteristic"] = strings.ToUpper(row["indicators_internalId"])
		decision["propose_APMIndicatorCategory"] = defaultIndicatorCategory

		if prior, ok := inputs[decisionKey(row)]; ok {
			decision["input_APMIndicatorPosition"] = prior["input_APMIndicatorPosition"]
			decision["input_ERPCharacteristic"] = prior["input_ERPCharacteristic"]
			decision["input_APMIndicatorCategory"] = prior["input_APMIndicatorCategory"]
		}

		decisions = append(decisions, decision)
	}

	return p.store.InsertBatch(ctx, store.UDRIndicators, decisions)
}

// collectInputs preserves manual inputs already recorded in the decision
// table, keyed by the transform row identity.
func (p *Pipeline) collectInputs(ctx context.Context) (map[string]map[string]string, error) {
	existing, err := p.store.Select(ctx, store.UDRIndicators.Name, []string{
		"id", "templateId", "indicatorGroups_id", "indicators_id",
		"input_APMIndicatorPosition", "input_ERPCharacteristic",
		"input_APMIndicatorCategory",
	}, "")
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]map[string]string, len(existing))
	for _, row := range existing {
		if row["input_APMIndicatorPosition"] == "" &&
			row["input_ERPCharacteristic"] == "" &&
			row["input_APMIndicatorCategory"] == "" {
			continue
		}
		inputs[decisionKey(row)] = row
	}
	return inputs, nil
}

func decisionKey(row map[string]string) string {
	return strings.Join([]string{
		row["id"], row["templateId"], row["indicatorGroups_id"], row["indicators_id"],
	}, "|")
}

// applyDecisions computes the final mapping values: the manual input wins
// over the proposal, and the source column records which one applied.
func (p *Pipeline) applyDecisions(ctx context.Context) error {
	for _, field := range []string{"APMIndicatorPosition", "ERPCharacteristic", "APMIndicatorCategory"} {
		stmt := `UPDATE "T_UDR_APM_INDICATORS" SET ` +
			`"` + field + `" = COALESCE(NULLIF("input_` + field + `", ''), "propose_` + field + `"), ` +
			`"` + field + `_src" = CASE WHEN NULLIF("input_` + field + `", '') IS NOT NULL THEN '` + sourceInput + `' ELSE '` + sourcePropose + `' END ` +
			`WHERE "tenantid" = $1`
		if _, err := p.store.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// materializePreLoad joins the decided rows against the position and
// characteristic resolution views and stages the fully resolved mapping.
// A row is valid once both GUIDs resolved.
func (p *Pipeline) materializePreLoad(ctx context.Context) error {
	positions, err := p.positionResolutions(ctx)
	if err != nil {
		return err
	}
	characteristics, err := p.characteristicResolutions(ctx)
	if err != nil {
		return err
	}

	decisions, err := p.store.Select(ctx, store.UDRIndicators.Name, concatColumns(
		transformViewColumns(),
		[]string{"APMIndicatorPosition", "ERPCharacteristic", "APMIndicatorCategory"},
	), "")
	if err != nil {
		return err
	}

	preload := make([]map[string]string, 0, len(decisions))
	for _, row := range decisions {
		position := positions[strings.ToUpper(row["APMIndicatorPosition"])]
		charcID := characteristics[strings.ToUpper(row["ERPCharacteristic"])]

		ssid := position["ssid"]
		if ssid == "" {
			ssid = p.apm.ERPSSID()
		}

		valid := ""
		if row["valid"] == "X" && position["apm_guid"] != "" && charcID != "" {
			valid = "X"
		}

		preload = append(preload, map[string]string{
			"internalId":                        row["internalId"],
			"name":                              row["name"],
			"externalId":                        row["externalId"],
			"objectType":                        row["objectType"],
			"indicatorGroups_internalId":        row["indicatorGroups_internalId"],
			"indicatorGroups_description_short": row["indicatorGroups_description_short"],
			"indicators_internalId":             row["indicators_internalId"],
			"indicators_description_short":      row["indicators_description_short"],
			"indicators_datatype":               row["indicators_dataType"],
			"indicators_scale":                  row["indicators_scale"],
			"indicators_precision":              row["indicators_precision"],
			"id":                                row["id"],
			"templateId":                        row["templateId"],
			"indicatorGroups_id":                row["indicatorGroups_id"],
			"indicators_id":                     row["indicators_id"],
			"ERPCharacteristic":                 row["ERPCharacteristic"],
			"CharcInternalID":                   charcID,
			"APMIndicatorCategory":              row["APMIndicatorCategory"],
			"apm_guid":                          position["apm_guid"],
			"ssid":                              ssid,
			"technicalObject_type":              apm.TechnicalObjectType(row["type"]),
			"valid":                             valid,
		})
	}

	if err := p.store.Truncate(ctx, store.PreLoadIndicators); err != nil {
		return err
	}
	return p.store.InsertBatch(ctx, store.PreLoadIndicators, preload)
}

// positionResolutions maps upper-cased position names to their resolved
// APM records.
func (p *Pipeline) positionResolutions(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := p.store.Select(ctx, store.ViewAPMIndicatorPositions.Name,
		[]string{"APMIndicatorPosition", "apm_guid", "ssid"}, "")
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]map[string]string, len(rows))
	for _, row := range rows {
		if row["apm_guid"] == "" {
			continue
		}
		resolved[strings.ToUpper(row["APMIndicatorPosition"])] = row
	}
	return resolved, nil
}

// characteristicResolutions maps upper-cased characteristic names to their
// ERP internal IDs.
func (p *Pipeline) characteristicResolutions(ctx context.Context) (map[string]string, error) {
	rows, err := p.store.Select(ctx, store.ViewERPCharacteristics.Name,
		[]string{"ERPCharacteristic", "CharcInternalID"}, "")
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]string, len(rows))
	for _, row := range rows {
		if row["CharcInternalID"] != "" {
			resolved[strings.ToUpper(row["ERPCharacteristic"])] = row["CharcInternalID"]
		}
	}
	return resolved, nil
}

func transformViewColumns() []string {
	return []string{
		"internalId", "type", "name", "externalId", "objectType",
		"indicatorGroups_internalId", "indicatorGroups_description_short",
		"indicators_internalId", "indicators_description_short",
		"indicators_dataType", "indicators_scale", "indicators_precision",
		"id", "templateId", "indicatorGroups_id", "indicators_id", "valid",
	}
}

func concatColumns(parts ...[]string) []string {
	var out []string
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}
