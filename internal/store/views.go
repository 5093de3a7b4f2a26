package store

import "fmt"

// View is a named SQL view created over the staging tables.
type View struct {
	Name       string
	Definition string
}

// ViewEquExternalData joins equipment headers to their template assignment
// and external IDs. Rows with an external ID are flagged valid.
var ViewEquExternalData = View{
	Name: "V_PAI_EQU_EXTERNAL_DATA",
	Definition: `
SELECT h."tenantid",
       h."equipmentId" AS "id",
       h."name",
       h."internalId",
       h."status",
       h."statusDescription",
       h."version",
       h."hasInRevision",
       h."modelId",
       h."modelName",
       h."shortDescription",
       t."templates_id" AS "templateId",
       h."modelTemplate",
       h."modelVersion",
       x."externalId",
       x."objectType",
       x."systemType",
       x."systemName",
       x."externalObjectTypeCode",
       CASE WHEN x."externalId" IS NOT NULL THEN 'X' ELSE '' END AS "valid"
FROM "T_PAI_EQU_HEADER" h
LEFT JOIN "T_PAI_EQU_MODEL_TEMPLATES" t
       ON t."tenantid" = h."tenantid" AND t."modelId" = h."modelId"
LEFT JOIN "T_PAI_EXTERNALDATA" x
       ON x."ainObjectId" = h."equipmentId" AND x."tenantid" = h."tenantid"
ORDER BY h."internalId"`,
}

// ViewFlocExternalData is the functional location counterpart. Floc headers
// carry their template directly, so no template join is needed.
var ViewFlocExternalData = View{
	Name: "V_PAI_FLOC_EXTERNAL_DATA",
	Definition: `
SELECT h."tenantid",
       h."id",
       h."name",
       h."internalId",
       h."status",
       h."statusDescription",
       h."version",
       h."hasInRevision",
       h."modelId",
       h."modelName",
       h."shortDescription",
       h."templateId",
       h."modelTemplate",
       h."modelVersion",
       x."externalId",
       x."objectType",
       x."systemType",
       x."systemName",
       x."externalObjectTypeCode",
       CASE WHEN x."externalId" IS NOT NULL THEN 'X' ELSE '' END AS "valid"
FROM "T_PAI_FLOC_HEADER" h
LEFT JOIN "T_PAI_EXTERNALDATA_FLOC" x
       ON x."ainObjectId" = h."id" AND x."tenantid" = h."tenantid"
ORDER BY h."internalId"`,
}

const transformIndicatorsSelect = `
SELECT e."tenantid",
       e."internalId",
       '%[1]s' AS "type",
       e."name",
       e."externalId",
       e."objectType",
       g."indicatorGroups_internalId",
       g."indicatorGroups_description_short",
       i."indicators_internalId",
       i."indicators_description_short",
       i."indicators_dataType",
       i."indicators_scale",
       i."indicators_precision",
       e."id",
       e."templateId",
       g."indicatorGroups_id",
       i."indicators_id",
       CASE WHEN i."indicators_id" IS NOT NULL AND g."indicatorGroups_id" IS NOT NULL
            THEN 'X' END AS "valid"
FROM "%[2]s" e
LEFT JOIN "%[3]s" g
       ON e."tenantid" = g."tenantid" AND e."templateId" = g."templateId"
LEFT JOIN "%[4]s" i
       ON i."tenantid" = e."tenantid"
      AND i."templateId" = e."templateId"
      AND i."indicatorGroups_id" = g."indicatorGroups_id"
WHERE e."valid" = 'X'`

// ViewTransformEquIndicators and ViewTransformFlocIndicators expand each
// valid object into one row per template indicator.
var (
	ViewTransformEquIndicators = View{
		Name: "V_TRANSFORM_EQU_INDICATORS",
		Definition: fmt.Sprintf(transformIndicatorsSelect, "EQU",
			ViewEquExternalData.Name, EquIndicatorGroups.Name, EquIndicators.Name),
	}
	ViewTransformFlocIndicators = View{
		Name: "V_TRANSFORM_FLOC_INDICATORS",
		Definition: fmt.Sprintf(transformIndicatorsSelect, "FLOC",
			ViewFlocExternalData.Name, FlocIndicatorGroups.Name, FlocIndicators.Name),
	}
)

// ViewTransformIndicators is the union of the valid equipment and functional
// location transform rows, the input for the user decision record.
var ViewTransformIndicators = View{
	Name: "V_TRANSFORM_INDICATORS",
	Definition: `
SELECT * FROM "V_TRANSFORM_FLOC_INDICATORS" WHERE "valid" = 'X'
UNION ALL
SELECT * FROM "V_TRANSFORM_EQU_INDICATORS" WHERE "valid" = 'X'`,
}

// ViewAPMIndicatorPositions resolves each decided position name against the
// APM position catalog, case-insensitively, yielding the position GUID.
var ViewAPMIndicatorPositions = View{
	Name: "V_APM_INDICATOR_POSITIONS",
	Definition: `
SELECT u."idx",
       u."tenantid",
       u."indicatorGroups_internalId",
       u."indicatorGroups_description_short",
       u."APMIndicatorPosition",
       u."APMIndicatorPosition_src",
       p."name",
       p."SSID" AS "ssid",
       p."ID" AS "apm_guid"
FROM "T_UDR_APM_INDICATORS" u
LEFT JOIN "T_APM_INDICATOR_POSITIONS" p
       ON upper(p."name") = upper(u."APMIndicatorPosition")
      AND p."tenantid" = u."tenantid"
ORDER BY u."APMIndicatorPosition_src", u."APMIndicatorPosition"`,
}

// ViewERPCharacteristics resolves each decided characteristic name against
// the extracted ERP catalog, yielding the internal characteristic ID. One
// row per distinct characteristic name.
var ViewERPCharacteristics = View{
	Name: "V_ERP_CHARACTERISTICS",
	Definition: `
SELECT DISTINCT ON (u."ERPCharacteristic")
       u."idx",
       u."tenantid",
       u."indicators_dataType" AS "indicators_datatype",
       u."indicators_scale",
       u."indicators_precision",
       u."ERPCharacteristic",
       u."ERPCharacteristic_src",
       c."CharcInternalID"
FROM "T_UDR_APM_INDICATORS" u
LEFT JOIN "T_ERP_CHARACTERISTICS" c
       ON upper(c."Characteristic") = upper(u."ERPCharacteristic")
      AND c."tenantid" = u."tenantid"
ORDER BY u."ERPCharacteristic", u."ERPCharacteristic_src"`,
}

// ViewPostLoadIndicators joins the staged mapping to the indicators read
// back from APM, exposing which rows actually landed.
var ViewPostLoadIndicators = View{
	Name: "V_POST_LOAD_INDICATORS",
	Definition: `
SELECT pre."tenantid",
       pre."internalId",
       pre."name",
       pre."externalId",
       pre."objectType",
       pre."indicatorGroups_internalId",
       pre."indicatorGroups_description_short",
       pre."indicators_internalId",
       pre."indicators_description_short",
       pre."indicators_datatype",
       pre."indicators_scale",
       pre."indicators_precision",
       pre."id",
       pre."templateId",
       pre."indicatorGroups_id",
       pre."indicators_id",
       pre."ERPCharacteristic",
       pre."CharcInternalID",
       pre."APMIndicatorCategory",
       pre."apm_guid" AS "apm_positionId",
       pre."ssid",
       pre."technicalObject_type",
       pre."valid",
       post."ID" AS "apm_indicatorId"
FROM "T_PRE_LOAD_INDICATORS" pre
LEFT JOIN "T_POST_LOAD_INDICATORS" post
       ON pre."tenantid" = post."tenantid"
      AND pre."externalId" = post."technicalObject_number"
      AND pre."CharcInternalID" = post."characteristics_characteristicsInternalId"
      AND pre."APMIndicatorCategory" = post."category_name"
      AND pre."apm_guid" = post."positionDetails_ID"
      AND pre."ssid" = post."category_SSID"
      AND pre."ssid" = post."characteristics_SSID"
      AND pre."technicalObject_type" = post."technicalObject_type"`,
}

// AllViews lists every view in dependency order.
var AllViews = []View{
	ViewEquExternalData,
	ViewFlocExternalData,
	ViewTransformEquIndicators,
	ViewTransformFlocIndicators,
	ViewTransformIndicators,
	ViewAPMIndicatorPositions,
	ViewERPCharacteristics,
	ViewPostLoadIndicators,
}
