package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"loanops/internal/models"
)

type FamilyMemberRepository struct {
	db *sql.DB
}

func NewFamilyMemberRepository(db *sql.DB) *FamilyMemberRepository {
	return &FamilyMemberRepository{db: db}
}

func (r *FamilyMemberRepository) Create(ctx context.Context, m *models.FamilyMember) error {
	const q = `
		INSERT INTO family_members (id, lead_id, firstname, lastname, relationship, mobile_no, age, is_dependent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.ExecContext(ctx, q, m.ID, m.LeadID, m.FirstName, m.LastName, m.Relationship,
		m.MobileNo, m.Age, m.IsDependent, m.CreatedAt); err != nil {
		return fmt.Errorf("create family member: %w", err)
	}
	return nil
}

// Update returns sql.ErrNoRows when the member does not belong to the lead.
func (r *FamilyMemberRepository) Update(ctx context.Context, m *models.FamilyMember) error {
	const q = `
		UPDATE family_members
		SET firstname=$1, lastname=$2, relationship=$3, mobile_no=$4, age=$5, is_dependent=$6
		WHERE id=$7 AND lead_id=$8
	`
	res, err := r.db.ExecContext(ctx, q, m.FirstName, m.LastName, m.Relationship, m.MobileNo,
		m.Age, m.IsDependent, m.ID, m.LeadID)
	if err != nil {
		return fmt.Errorf("update family member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *FamilyMemberRepository) ListByLead(ctx context.Context, leadID string) ([]models.FamilyMember, error) {
	const q = `
		SELECT id, lead_id, firstname, lastname, relationship, mobile_no, age, is_dependent, created_at
		FROM family_members
		WHERE lead_id=$1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, q, leadID)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	res := []models.FamilyMember{}
	for rows.Next() {
		var m models.FamilyMember
		if err := rows.Scan(&m.ID, &m.LeadID, &m.FirstName, &m.LastName, &m.Relationship,
			&m.MobileNo, &m.Age, &m.IsDependent, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *FamilyMemberRepository) Delete(ctx context.Context, leadID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM family_members WHERE id=$1 AND lead_id=$2`, id, leadID)
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
