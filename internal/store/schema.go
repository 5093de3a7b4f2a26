// Package store is the Postgres staging layer between extraction and load.
// Every API payload lands in a wide, string-typed table scoped by tenantid;
// the cross-system mapping happens in SQL views over those tables.
package store

// Table describes one staging table: its name and the payload columns in
// insert order. Each table additionally carries an idx serial key and the
// tenantid column, both managed by the store itself.
type Table struct {
	Name    string
	Columns []string
}

var externalDataColumns = []string{
	"systemId", "externalId", "objectType", "ainObjectId", "systemType",
	"systemName", "externalObjectTypeCode", "externalIdUrl",
}

// ExternalDataEqu and ExternalDataFloc hold the external ID assignments of
// equipment and functional locations.
var (
	ExternalDataEqu  = Table{Name: "T_PAI_EXTERNALDATA", Columns: externalDataColumns}
	ExternalDataFloc = Table{Name: "T_PAI_EXTERNALDATA_FLOC", Columns: externalDataColumns}
)

// APMIndicatorPositions mirrors the position catalog extracted from APM.
var APMIndicatorPositions = Table{
	Name:    "T_APM_INDICATOR_POSITIONS",
	Columns: []string{"ID", "SSID", "name"},
}

var headerColumns = []string{
	"name", "internalId", "status", "statusDescription", "version",
	"hasInRevision", "modelId", "modelName", "shortDescription", "templateId",
	"subclass", "modelTemplate", "location", "criticalityCode",
	"criticalityDescription", "manufacturer", "completeness", "createdOn",
	"changedOn", "publishedOn", "serialNumber", "batchNumber", "tagNumber",
	"lifeCycle", "lifeCycleDescription", "source", "imageURL", "operator",
	"coordinates", "installationDate",
}

var headerTailColumns = []string{
	"buildDate", "isOperatorValid", "modelVersion", "soldTo", "image",
	"consume", "dealer", "serviceProvider", "primaryExternalId",
}

// EquipmentHeader holds equipment master headers.
var EquipmentHeader = Table{
	Name: "T_PAI_EQU_HEADER",
	Columns: concat(
		[]string{"equipmentId"},
		headerColumns,
		[]string{"equipmentStatus"},
		headerTailColumns,
		[]string{"equipmentSearchTerms", "sourceSearchTerms", "manufacturerSearchTerms", "operatorSearchTerms", "class_"},
	),
}

// FlocHeader holds functional location master headers.
var FlocHeader = Table{
	Name: "T_PAI_FLOC_HEADER",
	Columns: concat(
		[]string{"id"},
		headerColumns,
		[]string{"flocStatus"},
		headerTailColumns,
		[]string{"flocSearchTerms", "sourceSearchTerms", "manufacturerSearchTerms", "operatorSearchTerms", "class_"},
	),
}

var modelTemplateColumns = []string{
	"name", "internalId", "organizationID", "generation", "releaseDate",
	"serviceExpirationDate", "calibrationDate", "orderStopDate",
	"noSparePartsDate", "globalId", "image", "keywords", "safetyRiskCode",
	"descriptions", "manufacturerPartNumber", "originalManufacturerPartNumber",
	"equipmentTracking", "gtin", "brand", "isFirmwareCompatible", "modelId",
	"templateId", "completeness", "subclass", "modelTemplate", "classId",
	"subclassId", "hasInRevision", "status", "version", "publishedOn",
	"manufacturer", "isManufacturerValid", "modelType", "countryCode",
	"referenceId", "templatesDetails", "_class",
	"description_language", "description_short", "description_long",
	"adminData_createdBy", "adminData_createdOn", "adminData_changedBy",
	"adminData_changedOn",
	"sectionCompleteness_headerPercentage",
	"sectionCompleteness_attachmentPercentage",
	"sectionCompleteness_instructionPercentage",
	"sectionCompleteness_valuePercentage",
	"templates_id", "templates_primary",
}

// EquModelTemplates and FlocModelTemplates map models to their templates.
var (
	EquModelTemplates  = Table{Name: "T_PAI_EQU_MODEL_TEMPLATES", Columns: modelTemplateColumns}
	FlocModelTemplates = Table{Name: "T_PAI_FLOC_MODEL_TEMPLATES", Columns: modelTemplateColumns}
)

var templateHeaderColumns = []string{
	"templateId", "descriptions", "internalId", "industryStandards",
	"semanticReferences", "client",
}

var templateHeaderTailColumns = []string{
	"type", "source", "isSourceActive", "modelUnits", "typeCode",
	"hasStructure", "isUsed", "writePrivilege", "deletePrivilege",
	"attributeGroups", "indicatorGroups", "nestedStructures", "attributes",
	"indicators", "description_language", "description_short",
	"description_long",
}

// EquTemplateHeader and FlocTemplateHeader hold template headers per object.
var (
	EquTemplateHeader = Table{
		Name:    "T_PAI_EQU_TEMPLATE_HEADER",
		Columns: concat(templateHeaderColumns, []string{"id"}, templateHeaderTailColumns, []string{"parentId"}),
	}
	FlocTemplateHeader = Table{
		Name:    "T_PAI_FLOC_TEMPLATE_HEADER",
		Columns: concat(templateHeaderColumns, []string{"flocId"}, templateHeaderTailColumns),
	}
)

var indicatorGroupColumns = []string{
	"indicatorGroups_descriptions", "indicatorGroups_internalId",
	"indicatorGroups_industryStandards", "indicatorGroups_semanticReferences",
	"indicatorGroups_isGlobal", "indicatorGroups_hasMultipleCardinality",
	"indicatorGroups_client", "indicatorGroups_id",
	"indicatorGroups_attributes", "indicatorGroups_isUsed",
	"indicatorGroups_writePrivilege", "indicatorGroups_deletePrivilege",
	"indicatorGroups_indicators", "indicatorGroups_indicatorIDs",
	"indicatorGroups_indicatorsGroupIDs", "indicatorGroups_isIndicator",
	"indicatorGroups_description_language",
	"indicatorGroups_description_short", "indicatorGroups_description_long",
	"indicatorGroups_adminData_createdBy",
	"indicatorGroups_adminData_changedBy",
}

// EquIndicatorGroups and FlocIndicatorGroups hold the exploded indicator
// groups of each template.
var (
	EquIndicatorGroups = Table{
		Name:    "T_PAI_EQU_INDICATOR_GROUPS",
		Columns: concat([]string{"templateId", "id"}, indicatorGroupColumns),
	}
	FlocIndicatorGroups = Table{
		Name:    "T_PAI_FLOC_INDICATOR_GROUPS",
		Columns: concat([]string{"templateId", "flocId"}, indicatorGroupColumns),
	}
)

var indicatorColumns = []string{
	"indicatorGroups_id", "indicatorGroups_internalId",
	"indicators_descriptions", "indicators_internalId",
	"indicators_industryStandards", "indicators_semanticReferences",
	"indicators_dataType", "indicators_dimension1", "indicators_isGlobal",
	"indicators_scale", "indicators_precision",
	"indicators_allowAdditionalValues", "indicators_codeListID",
	"indicators_expectedBehaviour", "indicators_aggregationConcept",
	"indicators_indicatorUom", "indicators_displayUom",
	"indicators_indicatorCategory", "indicators_indicatorColorCode",
	"indicators_indicatorType", "indicators_expBehaviourDesc",
	"indicators_aggConceptDesc", "indicators_client", "indicators_id",
	"indicators_dimension1Description", "indicators_unitOfMeasure1",
	"indicators_dataTypeDescription", "indicators_isUsed",
	"indicators_writePrivilege", "indicators_deletePrivilege",
	"indicators_codeListDEPRECATED", "indicators_codeList",
	"indicators_indicatorCategoryDescription", "indicators_namedAssociation",
	"indicators_description_language", "indicators_description_short",
	"indicators_description_long",
}

var indicatorCodeListColumns = []string{
	"indicators_codeList_description_language",
	"indicators_codeList_description_short",
	"indicators_codeList_description_long",
	"indicators_codeList_descriptions", "indicators_codeList_internalId",
	"indicators_codeList_industryStandards",
	"indicators_codeList_semanticReferences", "indicators_codeList_dataType",
	"indicators_codeList_items", "indicators_codeList_precision",
	"indicators_codeList_scale", "indicators_codeList_id",
	"indicators_codeList_isUsed", "indicators_codeList_writePrivilege",
	"indicators_codeList_deletePrivilege",
	"indicators_codeList_dataTypeDescription",
}

// EquIndicators and FlocIndicators hold the exploded indicators of each
// template. Equipment indicators also carry the exploded code list fields.
var (
	EquIndicators = Table{
		Name:    "T_PAI_EQU_INDICATORS",
		Columns: concat([]string{"templateId", "id"}, indicatorColumns, indicatorCodeListColumns),
	}
	FlocIndicators = Table{
		Name:    "T_PAI_FLOC_INDICATORS",
		Columns: concat([]string{"templateId", "flocId"}, indicatorColumns),
	}
)

// ERPCharacteristics mirrors the classification characteristics extracted
// from ERP, including the OData v2 metadata fields.
var ERPCharacteristics = Table{
	Name: "T_ERP_CHARACTERISTICS",
	Columns: []string{
		"Delete_mc", "Update_mc", "to_CharacteristicDesc_oc",
		"to_CharacteristicReference_oc", "to_CharacteristicRestriction_oc",
		"to_CharacteristicValue_oc", "CharcInternalID", "Characteristic",
		"CharcStatus", "CharcStatusName", "CharcDataType", "CharcLength",
		"CharcDecimals", "CharcTemplate", "ValueIsCaseSensitive", "CharcGroup",
		"CharcGroupName", "EntryIsRequired", "MultipleValuesAreAllowed",
		"CharcValueUnit", "UnitOfMeasureISOCode", "Currency",
		"CurrencyISOCode", "CharcExponentValue", "ValueIntervalIsAllowed",
		"AdditionalValueIsAllowed", "NegativeValueIsAllowed",
		"ValidityStartDate", "ValidityEndDate", "ChangeNumber", "DocumentType",
		"DocNumber", "DocumentVersion", "DocumentPart", "CharcMaintAuthGrp",
		"CharcIsReadOnly", "CharcIsHidden", "CharcIsRestrictable",
		"CharcExponentFormat", "CharcEntryIsNotFormatCtrld",
		"CharcTemplateIsDisplayed", "CreationDate", "LastChangeDate",
		"CharcLastChangedDateTime", "KeyDate",
		"metadata_id", "metadata_uri", "metadata_type", "metadata_etag",
		"to_CharacteristicDesc___deferred_uri",
		"to_CharacteristicReference___deferred_uri",
		"to_CharacteristicRestriction___deferred_uri",
		"to_CharacteristicValue___deferred_uri",
	},
}

var transformIndicatorColumns = []string{
	"internalId", "type", "name", "externalId", "objectType",
	"indicatorGroups_internalId", "indicatorGroups_description_short",
	"indicators_internalId", "indicators_description_short",
	"indicators_dataType", "indicators_scale", "indicators_precision",
	"id", "templateId", "indicatorGroups_id", "indicators_id", "valid",
}

// UDRIndicators is the user decision record: one row per transform result,
// carrying the proposed, entered and final mapping values per decision.
var UDRIndicators = Table{
	Name: "T_UDR_APM_INDICATORS",
	Columns: concat(transformIndicatorColumns, []string{
		"propose_APMIndicatorPosition", "input_APMIndicatorPosition",
		"APMIndicatorPosition", "APMIndicatorPosition_src",
		"propose_ERPCharacteristic", "input_ERPCharacteristic",
		"ERPCharacteristic", "ERPCharacteristic_src",
		"propose_APMIndicatorCategory", "input_APMIndicatorCategory",
		"APMIndicatorCategory", "APMIndicatorCategory_src",
	}),
}

// PreLoadIndicators is the fully resolved mapping staged before load.
var PreLoadIndicators = Table{
	Name: "T_PRE_LOAD_INDICATORS",
	Columns: []string{
		"internalId", "name", "externalId", "objectType",
		"indicatorGroups_internalId", "indicatorGroups_description_short",
		"indicators_internalId", "indicators_description_short",
		"indicators_datatype", "indicators_scale", "indicators_precision",
		"id", "templateId", "indicatorGroups_id", "indicators_id",
		"ERPCharacteristic", "CharcInternalID", "APMIndicatorCategory",
		"apm_guid", "ssid", "technicalObject_type", "valid",
	},
}

// LoadIndicators holds the indicator create payloads in API field order.
var LoadIndicators = Table{
	Name: "T_LOAD_INDICATORS",
	Columns: []string{
		"technicalObject_number", "technicalObject_type",
		"technicalObject_SSID", "category_name", "category_SSID",
		"characteristics_characteristicsInternalId", "characteristics_SSID",
		"positionDetails_ID", "valid",
	},
}

// PostLoadIndicators holds the indicators read back from APM after load.
var PostLoadIndicators = Table{
	Name: "T_POST_LOAD_INDICATORS",
	Columns: []string{
		"ID", "createdAt", "createdBy", "modifiedAt", "modifiedBy",
		"measuringPointId", "technicalObject_number", "technicalObject_SSID",
		"technicalObject_type", "technicalObject_technicalObject",
		"category_SSID", "category_name", "characteristics_SSID",
		"characteristics_characteristicsInternalId", "positionDetails_ID",
		"minValue", "maxValue", "targetValue", "color", "decimalDisplay",
		"type", "calculationType", "source",
	},
}

// AllTables lists every staging table in creation order.
var AllTables = []Table{
	EquipmentHeader, FlocHeader,
	EquModelTemplates, FlocModelTemplates,
	EquTemplateHeader, FlocTemplateHeader,
	EquIndicatorGroups, FlocIndicatorGroups,
	EquIndicators, FlocIndicators,
	ExternalDataEqu, ExternalDataFloc,
	ERPCharacteristics, APMIndicatorPositions,
	UDRIndicators, PreLoadIndicators, LoadIndicators, PostLoadIndicators,
}

func concat(parts ...[]string) []string {
	var out []string
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}
