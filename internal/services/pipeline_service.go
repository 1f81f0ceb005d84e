package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"loanops/internal/apperr"
	"loanops/internal/logger"
	"loanops/internal/metrics"
	"loanops/internal/models"
	"loanops/internal/repositories"
	"loanops/internal/reqctx"
)

type PipelineService struct {
	Stages      *repositories.PipelineRepository
	Transitions *repositories.TransitionRepository
	Leads       *repositories.LeadRepository
	Validation  *ValidationService
	log         logger.Logger
	now         func() time.Time
	newID       func() string
}

func NewPipelineService(
	stages *repositories.PipelineRepository,
	transitions *repositories.TransitionRepository,
	leads *repositories.LeadRepository,
	validation *ValidationService,
	log logger.Logger,
) *PipelineService {
	return &PipelineService{
		Stages:      stages,
		Transitions: transitions,
		Leads:       leads,
		Validation:  validation,
		log:         log.WithFields(map[string]interface{}{"module": "pipeline"}),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.NewString() },
	}
}

func (s *PipelineService) ListStages(ctx context.Context, scope reqctx.Scope) ([]models.PipelineStage, error) {
	stages, err := s.Stages.ListStages(ctx, scope.TenantID)
	if err != nil {
		s.log.Error("list stages failed", map[string]interface{}{"tenant": scope.TenantID, "error": err.Error()})
		return nil, apperr.Persistence("list stages", err)
	}
	return stages, nil
}

func (s *PipelineService) CreateStage(ctx context.Context, scope reqctx.Scope, stage models.PipelineStage) (*models.PipelineStage, error) {
	stage.ID = 0
	return s.saveStage(ctx, scope, stage)
}

func (s *PipelineService) UpdateStage(ctx context.Context, scope reqctx.Scope, id int64, stage models.PipelineStage) (*models.PipelineStage, error) {
	if id <= 0 {
		return nil, apperr.NotFound("stage")
	}
	stage.ID = id
	return s.saveStage(ctx, scope, stage)
}

func (s *PipelineService) saveStage(ctx context.Context, scope reqctx.Scope, stage models.PipelineStage) (*models.PipelineStage, error) {
	stage.Name = strings.TrimSpace(stage.Name)
	if stage.Name == "" {
		return nil, apperr.Validation("stage name is required")
	}
	if stage.SLAHours < 0 {
		return nil, apperr.Validation("slaHours must not be negative")
	}
	stage.TenantID = scope.TenantID
	stage.AllowedTransitions = uniqueIDs(stage.AllowedTransitions)

	// a stage may list itself, which only exists after insert
	check := make([]int64, 0, len(stage.AllowedTransitions))
	for _, id := range stage.AllowedTransitions {
		if id != stage.ID || stage.ID == 0 {
			check = append(check, id)
		}
	}
	if len(check) > 0 {
		n, err := s.Stages.CountStages(ctx, scope.TenantID, check)
		if err != nil {
			return nil, apperr.Persistence("check allowed transitions", err)
		}
		if n != len(check) {
			return nil, apperr.Validation("allowedTransitions references stages outside this pipeline")
		}
	}

	if err := s.Stages.SaveStage(ctx, &stage); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("stage")
		}
		s.log.Error("save stage failed", map[string]interface{}{"tenant": scope.TenantID, "stage": stage.Name, "error": err.Error()})
		return nil, apperr.Persistence("save stage", err)
	}
	return &stage, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// BuildFunnel counts open leads per stage. Percentages are relative to the
// leads that have a stage; leads without one are reported as unassigned.
func BuildFunnel(stages []models.PipelineStage, assignments []*int64) models.Funnel {
	counts := make(map[int64]int, len(stages))
	known := make(map[int64]bool, len(stages))
	for _, st := range stages {
		known[st.ID] = true
	}

	f := models.Funnel{Stages: make([]models.FunnelStage, 0, len(stages)), Total: len(assignments)}
	assigned := 0
	for _, a := range assignments {
		if a == nil || !known[*a] {
			f.Unassigned++
			continue
		}
		counts[*a]++
		assigned++
	}

	for _, st := range stages {
		fs := models.FunnelStage{
			StageID: st.ID,
			Name:    st.Name,
			Color:   st.Color,
			Order:   st.Order,
			Count:   counts[st.ID],
		}
		if assigned > 0 {
			fs.Percentage = round2(float64(fs.Count) * 100 / float64(assigned))
		}
		f.Stages = append(f.Stages, fs)
	}
	return f
}

func (s *PipelineService) Funnel(ctx context.Context, scope reqctx.Scope) (*models.Funnel, error) {
	stages, err := s.ListStages(ctx, scope)
	if err != nil {
		return nil, err
	}
	assignments, err := s.Leads.StageAssignments(ctx, scope.TenantID)
	if err != nil {
		s.log.Error("load stage assignments failed", map[string]interface{}{"tenant": scope.TenantID, "error": err.Error()})
		return nil, apperr.Persistence("load funnel", err)
	}
	f := BuildFunnel(stages, assignments)
	return &f, nil
}

// stay is one interval a lead spent in a stage. left is nil while the lead is still there.
type stay struct {
	leadID  string
	stageID int64
	entered time.Time
	left    *time.Time
	t       models.StageTransition
}

// stays turns transitions ordered by (lead, entered_at) into intervals.
func stays(transitions []models.StageTransition) []stay {
	out := make([]stay, 0, len(transitions))
	for i, t := range transitions {
		st := stay{leadID: t.LeadID, stageID: t.ToStageID, entered: t.EnteredAt, t: t}
		if i+1 < len(transitions) && transitions[i+1].LeadID == t.LeadID {
			left := transitions[i+1].EnteredAt
			st.left = &left
		}
		out = append(out, st)
	}
	return out
}

func (st stay) hours(now time.Time) float64 {
	end := now
	if st.left != nil {
		end = *st.left
	}
	return end.Sub(st.entered).Hours()
}

// ComputeStageMetrics derives TAT and SLA figures per stage from the transition
// log. Open stays are measured up to now and count as resident.
func ComputeStageMetrics(stages []models.PipelineStage, transitions []models.StageTransition, now time.Time) []models.StageMetrics {
	index := make(map[int64]int, len(stages))
	out := make([]models.StageMetrics, len(stages))
	totalHours := make([]float64, len(stages))
	for i, st := range stages {
		index[st.ID] = i
		out[i] = models.StageMetrics{StageID: st.ID, Name: st.Name, SLAHours: st.SLAHours}
	}

	for _, st := range stays(transitions) {
		i, ok := index[st.stageID]
		if !ok {
			continue
		}
		m := &out[i]
		h := st.hours(now)
		m.Entries++
		totalHours[i] += h
		if st.left == nil {
			m.Resident++
		}
		if m.SLAHours > 0 && h > float64(m.SLAHours) {
			m.SLABreaches++
		}
	}

	for i := range out {
		if out[i].Entries > 0 {
			out[i].AvgHoursInStage = round2(totalHours[i] / float64(out[i].Entries))
			out[i].SLABreachPercent = round2(float64(out[i].SLABreaches) * 100 / float64(out[i].Entries))
		}
	}
	return out
}

func (s *PipelineService) StageMetrics(ctx context.Context, scope reqctx.Scope) ([]models.StageMetrics, error) {
	stages, err := s.ListStages(ctx, scope)
	if err != nil {
		return nil, err
	}
	transitions, err := s.Transitions.ListByTenant(ctx, scope.TenantID)
	if err != nil {
		s.log.Error("load transitions failed", map[string]interface{}{"tenant": scope.TenantID, "error": err.Error()})
		return nil, apperr.Persistence("load stage metrics", err)
	}
	return ComputeStageMetrics(stages, transitions, s.now()), nil
}

// LeadTimeline lists the stages a lead went through with time spent in each.
func (s *PipelineService) LeadTimeline(ctx context.Context, scope reqctx.Scope, leadID string) ([]models.TimelineEntry, error) {
	if _, err := uuid.Parse(leadID); err != nil {
		return nil, apperr.NotFound("lead")
	}
	stages, err := s.ListStages(ctx, scope)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.PipelineStage, len(stages))
	for _, st := range stages {
		byID[st.ID] = st
	}
	transitions, err := s.Transitions.ListByLead(ctx, scope.TenantID, leadID)
	if err != nil {
		return nil, apperr.Persistence("load timeline", err)
	}

	now := s.now()
	out := make([]models.TimelineEntry, 0, len(transitions))
	for _, st := range stays(transitions) {
		stage := byID[st.stageID]
		name := stage.Name
		if name == "" {
			name = "stage " + strconv.FormatInt(st.stageID, 10)
		}
		h := st.hours(now)
		out = append(out, models.TimelineEntry{
			StageID:      st.stageID,
			StageName:    name,
			EnteredAt:    st.entered,
			LeftAt:       st.left,
			HoursInStage: round2(h),
			SLABreached:  stage.SLAHours > 0 && h > float64(stage.SLAHours),
			Overridden:   st.t.Overridden,
		})
	}
	return out, nil
}

// MoveStage advances a lead along the pipeline. The target must be a legal
// successor of the current stage (or the initial stage for an unstaged lead),
// and blocking validation failures require an explicit override with a reason.
func (s *PipelineService) MoveStage(ctx context.Context, scope reqctx.Scope, leadID string, req models.MoveStageRequest) (*models.StageTransition, error) {
	if _, err := uuid.Parse(leadID); err != nil {
		return nil, apperr.NotFound("lead")
	}
	lead, err := s.Leads.GetByID(ctx, scope.TenantID, leadID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("lead")
		}
		return nil, apperr.Persistence("load lead", err)
	}

	target, err := s.Stages.GetStage(ctx, scope.TenantID, req.TargetStageID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("stage")
		}
		return nil, apperr.Persistence("load stage", err)
	}
	if lead.Status.Terminal() {
		return nil, apperr.InvalidTransition(string(lead.Status), target.Name)
	}

	if lead.CurrentStageID == nil {
		if !target.IsInitialState {
			return nil, apperr.InvalidTransition("unassigned", target.Name)
		}
	} else {
		current, err := s.Stages.GetStage(ctx, scope.TenantID, *lead.CurrentStageID)
		if err != nil {
			if isNoRows(err) {
				return nil, apperr.InvalidTransition("unknown stage", target.Name)
			}
			return nil, apperr.Persistence("load stage", err)
		}
		if !current.Allows(target.ID) {
			return nil, apperr.InvalidTransition(current.Name, target.Name)
		}
	}

	report, err := s.Validation.EvaluateLead(ctx, lead)
	if err != nil {
		return nil, err
	}

	t := &models.StageTransition{
		ID:          s.newID(),
		TenantID:    scope.TenantID,
		LeadID:      leadID,
		FromStageID: lead.CurrentStageID,
		ToStageID:   target.ID,
		EnteredAt:   s.now(),
		UserID:      scope.UserRef(),
	}
	if !report.Summary.CanProceed {
		failed := report.FailedIDs()
		if !req.Override {
			return nil, apperr.ValidationBlocked(failed)
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return nil, apperr.Validation("an override reason is required")
		}
		t.Overridden = true
		t.OverrideReason = &reason
		t.FailedChecks = failed
	}

	if err := s.Transitions.MoveLead(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrStageChanged) {
			return nil, apperr.Conflict("lead moved to another stage meanwhile, reload and retry")
		}
		s.log.Error("move stage failed", map[string]interface{}{
			"tenant": scope.TenantID, "lead_id": leadID, "to": target.ID, "error": err.Error(),
		})
		return nil, apperr.Persistence("move lead", err)
	}

	metrics.StageMovesTotal.WithLabelValues(strconv.FormatBool(t.Overridden)).Inc()
	fields := map[string]interface{}{
		"tenant": scope.TenantID, "lead_id": leadID, "to": target.ID, "user_id": scope.UserID,
	}
	if t.Overridden {
		fields["failed_checks"] = strings.Join(t.FailedChecks, ",")
		s.log.Warn("stage move with validation override", fields)
	} else {
		s.log.Info("lead moved", fields)
	}
	return t, nil
}
