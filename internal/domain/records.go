package domain

import "time"

// Records are the plain structured input handed over by ingestion front ends.

type EntityRecord struct {
	ID         string         `json:"id" validate:"required"`
	Name       string         `json:"name" validate:"required"`
	EntityType string         `json:"entity_type,omitempty"`
	SourceFile string         `json:"source_file,omitempty"`
	Confidence *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type EventRecord struct {
	ID           string         `json:"id" validate:"required"`
	Name         string         `json:"name" validate:"required"`
	Date         *time.Time     `json:"date,omitempty"`
	Participants []string       `json:"participants,omitempty"`
	Amount       *float64       `json:"amount,omitempty"`
	Description  string         `json:"description,omitempty"`
	SourceFile   string         `json:"source_file,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type RelationshipRecord struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name" validate:"required"`
	SourceID   string         `json:"source_id" validate:"required"`
	TargetID   string         `json:"target_id" validate:"required"`
	Confidence *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type EvidenceRecord struct {
	ID          string         `json:"id" validate:"required"`
	Name        string         `json:"name" validate:"required"`
	SourceFile  string         `json:"source_file,omitempty"`
	References  []string       `json:"references,omitempty"`
	Description string         `json:"description,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CaseFile bundles all records for one case, as produced by an ingestion run.
type CaseFile struct {
	CaseID        string               `json:"case_id" validate:"required"`
	Entities      []EntityRecord       `json:"entities" validate:"dive"`
	Events        []EventRecord        `json:"events" validate:"dive"`
	Relationships []RelationshipRecord `json:"relationships" validate:"dive"`
	Evidence      []EvidenceRecord     `json:"evidence" validate:"dive"`
}
