package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanops/internal/models"
)

func TestPipelineRepository_SaveInitialStageClearsOthers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE pipeline_stages SET is_initial_state = FALSE`).
		WithArgs("t1", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO pipeline_stages`).
		WithArgs("t1", "New", "", 1, "#00f", true, false, sqlmock.AnyArg(), 24).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	stage := &models.PipelineStage{TenantID: "t1", Name: "New", Order: 1, Color: "#00f", IsInitialState: true, SLAHours: 24}
	err = NewPipelineRepository(db).SaveStage(context.Background(), stage)

	require.NoError(t, err)
	assert.Equal(t, int64(7), stage.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipelineRepository_ListStagesDecodesTransitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "tenant_id", "name", "description", "stage_order", "color",
		"is_initial_state", "is_final_state", "allowed_transitions", "sla_hours"}
	mock.ExpectQuery(`FROM pipeline_stages WHERE tenant_id = \$1 ORDER BY stage_order`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), "t1", "New", "", 1, "", true, false, []byte("{2,3}"), 24).
			AddRow(int64(2), "t1", "Review", "", 2, "", false, false, []byte("{}"), 48))

	stages, err := NewPipelineRepository(db).ListStages(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, []int64{2, 3}, stages[0].AllowedTransitions)
	assert.Equal(t, []int64{}, stages[1].AllowedTransitions)
}

func TestTransitionRepository_MoveLeadDetectsConcurrentChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	from := int64(1)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE leads`).
		WithArgs(int64(2), sqlmock.AnyArg(), "lead-1", "t1", from).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = NewTransitionRepository(db).MoveLead(context.Background(), &models.StageTransition{
		ID: "tr-1", TenantID: "t1", LeadID: "lead-1", FromStageID: &from, ToStageID: 2, EnteredAt: time.Now(),
	})

	assert.ErrorIs(t, err, ErrStageChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRepository_MoveLeadCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reason := "branch manager approval"
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE leads`).
		WithArgs(int64(2), sqlmock.AnyArg(), "lead-1", "t1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stage_transitions`).
		WithArgs("tr-1", "t1", "lead-1", nil, int64(2), sqlmock.AnyArg(), nil, true, reason, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewTransitionRepository(db).MoveLead(context.Background(), &models.StageTransition{
		ID: "tr-1", TenantID: "t1", LeadID: "lead-1", ToStageID: 2, EnteredAt: time.Now(),
		Overridden: true, OverrideReason: &reason, FailedChecks: []string{"credit_score"},
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
