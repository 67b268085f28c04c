package models

import "slices"

// Method is how evidence entered the system. Each method has its own row in
// the precondition table and its own set of compatible dataset types.
type Method string

const (
	MethodFileUpload     Method = "FILE_UPLOAD"
	MethodAPIPush        Method = "API_PUSH"
	MethodERPExport      Method = "ERP_EXPORT"
	MethodManualEntry    Method = "MANUAL_ENTRY"
	MethodSupplierPortal Method = "SUPPLIER_PORTAL"
)

var methods = []Method{MethodFileUpload, MethodAPIPush, MethodERPExport, MethodManualEntry, MethodSupplierPortal}

func (m Method) IsValid() bool { return slices.Contains(methods, m) }

func (m Method) String() string { return string(m) }

// DatasetType classifies what the evidence describes.
type DatasetType string

const (
	DatasetSupplierMaster    DatasetType = "SUPPLIER_MASTER"
	DatasetProductMaster     DatasetType = "PRODUCT_MASTER"
	DatasetEmissionsActivity DatasetType = "EMISSIONS_ACTIVITY"
	DatasetShipmentRecord    DatasetType = "SHIPMENT_RECORD"
	DatasetCertificate       DatasetType = "CERTIFICATE"
	DatasetGeolocationPlot   DatasetType = "GEOLOCATION_PLOT"
)

var datasetTypes = []DatasetType{
	DatasetSupplierMaster, DatasetProductMaster, DatasetEmissionsActivity,
	DatasetShipmentRecord, DatasetCertificate, DatasetGeolocationPlot,
}

func (d DatasetType) IsValid() bool { return slices.Contains(datasetTypes, d) }

func (d DatasetType) String() string { return string(d) }

// Scope is the organisational unit the evidence is declared against.
type Scope string

const (
	ScopeOrganization Scope = "ORGANIZATION"
	ScopeSite         Scope = "SITE"
	ScopeSupplier     Scope = "SUPPLIER"
	ScopeProduct      Scope = "PRODUCT"
	ScopeShipment     Scope = "SHIPMENT"
)

var scopes = []Scope{ScopeOrganization, ScopeSite, ScopeSupplier, ScopeProduct, ScopeShipment}

func (s Scope) IsValid() bool { return slices.Contains(scopes, s) }

// RequiresTarget reports whether a scope_target_id must accompany the scope.
func (s Scope) RequiresTarget() bool { return s != ScopeOrganization }

type RetentionPolicy string

const (
	RetentionStandard7Y  RetentionPolicy = "STANDARD_7Y"
	RetentionExtended10Y RetentionPolicy = "EXTENDED_10Y"
	RetentionLegalHold   RetentionPolicy = "LEGAL_HOLD"
)

func (r RetentionPolicy) IsValid() bool {
	return slices.Contains([]RetentionPolicy{RetentionStandard7Y, RetentionExtended10Y, RetentionLegalHold}, r)
}

// LegalBasis is the GDPR Art. 6 basis for processing personal data.
type LegalBasis string

const (
	LegalBasisConsent             LegalBasis = "CONSENT"
	LegalBasisContract            LegalBasis = "CONTRACT"
	LegalBasisLegalObligation     LegalBasis = "LEGAL_OBLIGATION"
	LegalBasisVitalInterests      LegalBasis = "VITAL_INTERESTS"
	LegalBasisPublicTask          LegalBasis = "PUBLIC_TASK"
	LegalBasisLegitimateInterests LegalBasis = "LEGITIMATE_INTERESTS"
)

func (b LegalBasis) IsValid() bool {
	return slices.Contains([]LegalBasis{
		LegalBasisConsent, LegalBasisContract, LegalBasisLegalObligation,
		LegalBasisVitalInterests, LegalBasisPublicTask, LegalBasisLegitimateInterests,
	}, b)
}

// DataOrigin marks whether a submission carries real data. Non-live origins
// are refused by production tenants.
type DataOrigin string

const (
	OriginLive    DataOrigin = "LIVE"
	OriginFixture DataOrigin = "FIXTURE"
	OriginTest    DataOrigin = "TEST"
)

func (o DataOrigin) IsValid() bool {
	return slices.Contains([]DataOrigin{OriginLive, OriginFixture, OriginTest}, o)
}

func (o DataOrigin) IsLive() bool { return o == "" || o == OriginLive }

// DraftStatus is the pre-seal status of a draft. It is deliberately separate
// from LedgerState: drafts never carry a post-seal state.
type DraftStatus string

const (
	DraftStatusDraft       DraftStatus = "DRAFT"
	DraftStatusSealed      DraftStatus = "SEALED"
	DraftStatusQuarantined DraftStatus = "QUARANTINED"
)

// LedgerState is the post-seal state of an evidence record.
type LedgerState string

const (
	StateSealed     LedgerState = "SEALED"
	StateClassified LedgerState = "CLASSIFIED"
	StateStructured LedgerState = "STRUCTURED"
	StateRejected   LedgerState = "REJECTED"
	StateSuperseded LedgerState = "SUPERSEDED"
)

func (s LedgerState) IsValid() bool {
	return slices.Contains([]LedgerState{StateSealed, StateClassified, StateStructured, StateRejected, StateSuperseded}, s)
}

func (s LedgerState) String() string { return string(s) }

// Role is the actor role supplied by the authentication provider.
type Role string

const (
	RoleAdmin             Role = "ADMIN"
	RoleComplianceOfficer Role = "COMPLIANCE_OFFICER"
	RoleAnalyst           Role = "ANALYST"
	RoleContributor       Role = "CONTRIBUTOR"
	RoleViewer            Role = "VIEWER"
	RoleSystem            Role = "SYSTEM"
)

func (r Role) IsValid() bool {
	return slices.Contains([]Role{RoleAdmin, RoleComplianceOfficer, RoleAnalyst, RoleContributor, RoleViewer, RoleSystem}, r)
}

// CommandType names a ledger command.
type CommandType string

const (
	CommandClassify  CommandType = "ClassifyEvidenceCommand"
	CommandStructure CommandType = "StructureEvidenceCommand"
	CommandReject    CommandType = "RejectEvidenceCommand"
	// CommandSupersede is only an idempotency namespace for supersession.
	// It is never accepted by the command endpoint.
	CommandSupersede CommandType = "SupersedeEvidenceCommand"
)

func (c CommandType) IsValid() bool {
	return slices.Contains([]CommandType{CommandClassify, CommandStructure, CommandReject}, c)
}

func (c CommandType) String() string { return string(c) }
