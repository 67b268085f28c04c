package models

import (
	"slices"

	dErrors "evidentia/pkg/domain-errors"
)

// Field error codes.
const (
	FieldRequired     = "required"
	FieldInvalidValue = "invalid_value"
	FieldIncompatible = "incompatible"
	FieldTooShort     = "too_short"
)

// methodDatasets lists, per ingestion method, the dataset types it may carry.
var methodDatasets = map[Method][]DatasetType{
	MethodFileUpload:     datasetTypes,
	MethodAPIPush:        {DatasetSupplierMaster, DatasetProductMaster, DatasetEmissionsActivity, DatasetShipmentRecord},
	MethodERPExport:      {DatasetSupplierMaster, DatasetProductMaster, DatasetEmissionsActivity, DatasetShipmentRecord},
	MethodManualEntry:    {DatasetSupplierMaster, DatasetProductMaster, DatasetEmissionsActivity, DatasetCertificate},
	MethodSupplierPortal: {DatasetSupplierMaster, DatasetCertificate, DatasetGeolocationPlot},
}

// datasetScopes lists, per dataset type, the scopes it may be declared against.
var datasetScopes = map[DatasetType][]Scope{
	DatasetSupplierMaster:    {ScopeOrganization, ScopeSupplier},
	DatasetProductMaster:     {ScopeOrganization, ScopeProduct},
	DatasetEmissionsActivity: {ScopeOrganization, ScopeSite, ScopeProduct},
	DatasetShipmentRecord:    {ScopeShipment},
	DatasetCertificate:       {ScopeSupplier, ScopeSite, ScopeProduct},
	DatasetGeolocationPlot:   {ScopeSite, ScopeSupplier},
}

// AllowedDatasetTypes returns the dataset types compatible with m.
func AllowedDatasetTypes(m Method) []DatasetType {
	return slices.Clone(methodDatasets[m])
}

// AllowedScopes returns the scopes compatible with d.
func AllowedScopes(d DatasetType) []Scope {
	return slices.Clone(datasetScopes[d])
}

// CheckCompatibility validates the method × dataset_type × scope triple.
// Unknown enum values are reported by the caller's presence checks; this only
// reports combinations that are individually valid but not allowed together.
func CheckCompatibility(m Method, d DatasetType, s Scope) []dErrors.FieldError {
	var errs []dErrors.FieldError
	if m.IsValid() && d.IsValid() && !slices.Contains(methodDatasets[m], d) {
		errs = append(errs, dErrors.FieldError{
			Field:   "dataset_type",
			Code:    FieldIncompatible,
			Message: "dataset_type " + string(d) + " is not accepted through " + string(m),
			Hint:    "use one of: " + join(methodDatasets[m]),
		})
	}
	if d.IsValid() && s.IsValid() && !slices.Contains(datasetScopes[d], s) {
		errs = append(errs, dErrors.FieldError{
			Field:   "declared_scope",
			Code:    FieldIncompatible,
			Message: "declared_scope " + string(s) + " is not valid for " + string(d),
			Hint:    "use one of: " + join(datasetScopes[d]),
		})
	}
	return errs
}

func join[T ~string](vals []T) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ", "
		}
		out += string(v)
	}
	return out
}
