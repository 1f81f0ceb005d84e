package models

import "time"

// PipelineStage is a tenant's named step with its legal successors.
type PipelineStage struct {
	ID                 int64   `json:"id"`
	TenantID           string  `json:"tenantId"`
	Name               string  `json:"name" binding:"required"`
	Description        string  `json:"description"`
	Order              int     `json:"order"`
	Color              string  `json:"color"`
	IsInitialState     bool    `json:"isInitialState"`
	IsFinalState       bool    `json:"isFinalState"`
	AllowedTransitions []int64 `json:"allowedTransitions"`
	SLAHours           int     `json:"slaHours"`
}

// Allows reports whether target is a legal successor of this stage.
func (s *PipelineStage) Allows(target int64) bool {
	for _, id := range s.AllowedTransitions {
		if id == target {
			return true
		}
	}
	return false
}

// StageTransition is an append-only record of a lead entering a stage.
type StageTransition struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	LeadID         string    `json:"leadId"`
	FromStageID    *int64    `json:"fromStageId,omitempty"`
	ToStageID      int64     `json:"toStageId"`
	EnteredAt      time.Time `json:"enteredAt"`
	UserID         *int64    `json:"userId,omitempty"`
	Overridden     bool      `json:"overridden"`
	OverrideReason *string   `json:"overrideReason,omitempty"`
	FailedChecks   []string  `json:"failedChecks,omitempty"`
}

type MoveStageRequest struct {
	TargetStageID int64  `json:"targetStageId" binding:"required"`
	Override      bool   `json:"override"`
	Reason        string `json:"reason"`
}

type FunnelStage struct {
	StageID    int64   `json:"stageId"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Order      int     `json:"order"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Funnel struct {
	Stages     []FunnelStage `json:"stages"`
	Total      int           `json:"total"`
	Unassigned int           `json:"unassigned"`
}

type StageMetrics struct {
	StageID          int64   `json:"stageId"`
	Name             string  `json:"name"`
	Entries          int     `json:"entries"`
	Resident         int     `json:"resident"`
	AvgHoursInStage  float64 `json:"avgHoursInStage"`
	SLAHours         int     `json:"slaHours"`
	SLABreaches      int     `json:"slaBreaches"`
	SLABreachPercent float64 `json:"slaBreachPercent"`
}

// TimelineEntry is one stay of a lead in a stage.
type TimelineEntry struct {
	StageID      int64      `json:"stageId"`
	StageName    string     `json:"stageName"`
	EnteredAt    time.Time  `json:"enteredAt"`
	LeftAt       *time.Time `json:"leftAt,omitempty"`
	HoursInStage float64    `json:"hoursInStage"`
	SLABreached  bool       `json:"slaBreached"`
	Overridden   bool       `json:"overridden"`
}
