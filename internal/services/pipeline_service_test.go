package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanops/internal/apperr"
	"loanops/internal/logger"
	"loanops/internal/models"
	"loanops/internal/repositories"
)

func newTestPipelineService(db *sql.DB) *PipelineService {
	leads := repositories.NewLeadRepository(db)
	family := repositories.NewFamilyMemberRepository(db)
	validation := NewValidationService(leads, family, testValidationCfg, logger.NewNoOpLogger())
	s := NewPipelineService(repositories.NewPipelineRepository(db), repositories.NewTransitionRepository(db), leads, validation, logger.NewNoOpLogger())
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "tr-1" }
	return s
}

func id64(v int64) *int64 { return &v }

func TestBuildFunnel_Percentages(t *testing.T) {
	stages := []models.PipelineStage{{ID: 1, Name: "New"}, {ID: 2, Name: "Review"}, {ID: 3, Name: "Approved"}}
	var assignments []*int64
	for i := 0; i < 4; i++ {
		assignments = append(assignments, id64(1))
	}
	for i := 0; i < 3; i++ {
		assignments = append(assignments, id64(2), id64(3))
	}
	assignments = append(assignments, nil, nil)

	f := BuildFunnel(stages, assignments)

	assert.Equal(t, 12, f.Total)
	assert.Equal(t, 2, f.Unassigned)
	require.Len(t, f.Stages, 3)
	assert.Equal(t, 4, f.Stages[0].Count)
	assert.Equal(t, 40.0, f.Stages[0].Percentage)
	assert.Equal(t, 30.0, f.Stages[1].Percentage)
	assert.Equal(t, 30.0, f.Stages[2].Percentage)
}

func TestBuildFunnel_RoundsToTwoDecimals(t *testing.T) {
	stages := []models.PipelineStage{{ID: 1}, {ID: 2}}
	f := BuildFunnel(stages, []*int64{id64(1), id64(2), id64(2)})
	assert.Equal(t, 33.33, f.Stages[0].Percentage)
	assert.Equal(t, 66.67, f.Stages[1].Percentage)
}

func TestBuildFunnel_Empty(t *testing.T) {
	f := BuildFunnel([]models.PipelineStage{{ID: 1}}, nil)
	assert.Equal(t, 0, f.Total)
	assert.Equal(t, 0.0, f.Stages[0].Percentage)
}

func TestComputeStageMetrics(t *testing.T) {
	stages := []models.PipelineStage{{ID: 1, Name: "New", SLAHours: 24}, {ID: 2, Name: "Review", SLAHours: 48}}
	t0 := fixedNow.Add(-100 * time.Hour)
	transitions := []models.StageTransition{
		// lead a: 10h in New, then in Review for 90h (open, breached)
		{LeadID: "a", ToStageID: 1, EnteredAt: t0},
		{LeadID: "a", FromStageID: id64(1), ToStageID: 2, EnteredAt: t0.Add(10 * time.Hour)},
		// lead b: 30h in New (breached), then Review for 20h (open)
		{LeadID: "b", ToStageID: 1, EnteredAt: t0.Add(50 * time.Hour)},
		{LeadID: "b", FromStageID: id64(1), ToStageID: 2, EnteredAt: t0.Add(80 * time.Hour)},
	}

	m := ComputeStageMetrics(stages, transitions, fixedNow)
	require.Len(t, m, 2)

	assert.Equal(t, 2, m[0].Entries)
	assert.Equal(t, 0, m[0].Resident)
	assert.Equal(t, 20.0, m[0].AvgHoursInStage)
	assert.Equal(t, 1, m[0].SLABreaches)
	assert.Equal(t, 50.0, m[0].SLABreachPercent)

	assert.Equal(t, 2, m[1].Entries)
	assert.Equal(t, 2, m[1].Resident)
	assert.Equal(t, 55.0, m[1].AvgHoursInStage)
	assert.Equal(t, 1, m[1].SLABreaches)
}

func TestMoveStage_NotAllowedTarget(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPipelineService(db)

	mock.ExpectQuery(leadByIDQuery).WithArgs(testLeadID, "t1").WillReturnRows(leadRows(testLeadID, passingLead(int64(1))))
	mock.ExpectQuery(stageByIDQuery).WithArgs(int64(3), "t1").
		WillReturnRows(sqlmock.NewRows(stageColumnNames).AddRow(stageRow(3, "Approved", false, "{}", 0)...))
	mock.ExpectQuery(stageByIDQuery).WithArgs(int64(1), "t1").
		WillReturnRows(sqlmock.NewRows(stageColumnNames).AddRow(stageRow(1, "New", true, "{2}", 24)...))

	_, err := svc.MoveStage(context.Background(), testScope, testLeadID, models.MoveStageRequest{TargetStageID: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStage_UnstagedLeadMustEnterInitialStage(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPipelineService(db)

	mock.ExpectQuery(leadByIDQuery).WithArgs(testLeadID, "t1").WillReturnRows(leadRows(testLeadID, passingLead(nil)))
	mock.ExpectQuery(stageByIDQuery).WithArgs(int64(2), "t1").
		WillReturnRows(sqlmock.NewRows(stageColumnNames).AddRow(stageRow(2, "Review", false, "{}", 0)...))

	_, err := svc.MoveStage(context.Background(), testScope, testLeadID, models.MoveStageRequest{TargetStageID: 2})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStage_TerminalLeadIsInvalidTransition(t *testing.T) {
	for _, status := range []models.LeadStatus{models.LeadClosed, models.LeadConverted} {
		t.Run(string(status), func(t *testing.T) {
			db, mock := newMockDB(t)
			svc := newTestPipelineService(db)

			lead := passingLead(int64(1))
			lead.status = status
			mock.ExpectQuery(leadByIDQuery).WithArgs(testLeadID, "t1").WillReturnRows(leadRows(testLeadID, lead))
			mock.ExpectQuery(stageByIDQuery).WithArgs(int64(2), "t1").
				WillReturnRows(sqlmock.NewRows(stageColumnNames).AddRow(stageRow(2, "Review", false, "{3}", 48)...))

			tr, err := svc.MoveStage(context.Background(), testScope, testLeadID, models.MoveStageRequest{TargetStageID: 2})
			require.ErrorIs(t, err, apperr.ErrInvalidTransition)
			assert.Nil(t, tr)
			assert.Equal(t, "transition from "+string(status)+" to Review is not allowed", apperr.Message(err))
			// no stage lookup for the current stage, no UPDATE and no transition row
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func expectAllowedMove(mock sqlmock.Sqlmock, lead leadFixture) {
	mock.ExpectQuery(leadByIDQuery).WithArgs(testLeadID, "t1").WillReturnRows(leadRows(testLeadID, lead))
	mock.ExpectQuery(stageByIDQuery).WithArgs(int64(2), "t1").
		WillReturnRows(sqlmock.NewRows(stageColumnNames).AddRow(stageRow(2, "Review", false, "{3}", 48)...))
	mock.ExpectQuery(stageByIDQuery).WithArgs(int64(1), "t1").
		WillReturnRows(sqlmock.NewRows(stageColumnNames).AddRow(stageRow(1, "New", true, "{2}", 24)...))
	mock.ExpectQuery("FROM family_members").WithArgs(testLeadID).
		WillReturnRows(sqlmock.NewRows(familyColumnNames))
}

func TestMoveStage_BlockedWithoutOverride(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPipelineService(db)

	lead := passingLead(int64(1))
	lead.verified = false
	expectAllowedMove(mock, lead)

	_, err := svc.MoveStage(context.Background(), testScope, testLeadID, models.MoveStageRequest{TargetStageID: 2})
	require.ErrorIs(t, err, apperr.ErrValidationBlocked)
	assert.Equal(t, 422, apperr.HTTPStatus(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStage_OverrideNeedsReason(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPipelineService(db)

	lead := passingLead(int64(1))
	lead.verified = false
	expectAllowedMove(mock, lead)

	_, err := svc.MoveStage(context.Background(), testScope, testLeadID,
		models.MoveStageRequest{TargetStageID: 2, Override: true, Reason: " "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStage_OverrideRecordsFailedChecks(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPipelineService(db)

	lead := passingLead(int64(1))
	lead.verified = false
	expectAllowedMove(mock, lead)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE leads SET current_stage_id = \$1`).
		WithArgs(int64(2), fixedNow, testLeadID, "t1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stage_transitions").
		WithArgs("tr-1", "t1", testLeadID, int64(1), int64(2), fixedNow, int64(9), true, "manager approved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tr, err := svc.MoveStage(context.Background(), testScope, testLeadID,
		models.MoveStageRequest{TargetStageID: 2, Override: true, Reason: "manager approved"})
	require.NoError(t, err)
	assert.True(t, tr.Overridden)
	assert.Equal(t, []string{CheckDocumentsVerified}, tr.FailedChecks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStage_ConcurrentMoveIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPipelineService(db)

	expectAllowedMove(mock, passingLead(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE leads SET current_stage_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.MoveStage(context.Background(), testScope, testLeadID, models.MoveStageRequest{TargetStageID: 2})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStage_RejectsForeignAllowedIDs(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestPipelineService(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pipeline_stages`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.CreateStage(context.Background(), testScope,
		models.PipelineStage{Name: "Review", AllowedTransitions: []int64{2, 77, 2}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}
