package model

import "time"

// ResolutionMethod tags how a ResolvedRelationship's materialized ids were
// derived.
type ResolutionMethod string

const (
	ExplicitIds             ResolutionMethod = "explicit_ids"
	PoolFilterResolved      ResolutionMethod = "pool_filter_resolved"
	PoolSelectionResolved   ResolutionMethod = "pool_selection_resolved"
	DynamicSelectorResolved ResolutionMethod = "dynamic_selector_resolved"
	AllInstancesResolved    ResolutionMethod = "all_instances_resolved"
	SchemaDefaultResolved   ResolutionMethod = "schema_default_resolved"
	EmptyResolution         ResolutionMethod = "empty_resolution"
)

// ResolutionDetails is diagnostic metadata attached to a resolved
// relationship, useful to a caller debugging why a pool came out a
// particular size.
type ResolutionDetails struct {
	OriginalDefinition   string   `json:"original_definition"`
	ResolvedFrom         string   `json:"resolved_from"`
	FilterDescription    *string  `json:"filter_description,omitempty"`
	TotalPoolSize        int      `json:"total_pool_size"`
	FilteredOutCount     int      `json:"filtered_out_count"`
	ResolutionTimeMicros int64    `json:"resolution_time_us"`
	Notes                []string `json:"notes,omitempty"`
}

// ResolvedRelationship is the read-projection of one relationship slot.
type ResolvedRelationship struct {
	MaterializedIds  []string          `json:"materialized_ids"`
	ResolutionMethod ResolutionMethod  `json:"resolution_method"`
	Details          ResolutionDetails `json:"details"`
}

// ExpandedInstance is the full read projection of an Instance: evaluated
// property values and resolved relationships.
type ExpandedInstance struct {
	Id            string                          `json:"id"`
	ClassId       string                          `json:"class_id"`
	Domain        *Domain                         `json:"domain,omitempty"`
	Properties    map[string]any                  `json:"properties"`
	Relationships map[string]ResolvedRelationship `json:"relationships"`
	Included      []string                        `json:"included"`
	CreatedBy     string                          `json:"created_by"`
	CreatedAt     time.Time                       `json:"created_at"`
	UpdatedBy     string                          `json:"updated_by"`
	UpdatedAt     time.Time                       `json:"updated_at"`
}
