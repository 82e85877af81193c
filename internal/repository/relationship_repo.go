package repository

import (
	"database/sql"
	"fmt"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// RelationshipRepository handles database operations for family
// relationships. Pairs are stored normalized (user_a_id < user_b_id) so the
// unique index covers the unordered pair.
type RelationshipRepository struct {
	db *database.DB
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(db *database.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

const relationshipCols = `id, family_id, user_a_id, user_b_id, type_a_to_b, type_b_to_a, status, created_at`

func scanRelationship(scanner interface{ Scan(...any) error }) (*models.Relationship, error) {
	var rel models.Relationship
	err := scanner.Scan(&rel.ID, &rel.FamilyID, &rel.UserAID, &rel.UserBID,
		&rel.TypeAToB, &rel.TypeBToA, &rel.Status, &rel.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// normalizePair orders a pair and swaps the directional types to match
func normalizePair(rel *models.Relationship) {
	if rel.UserAID > rel.UserBID {
		rel.UserAID, rel.UserBID = rel.UserBID, rel.UserAID
		rel.TypeAToB, rel.TypeBToA = rel.TypeBToA, rel.TypeAToB
	}
}

// Create inserts an active relationship for a normalized pair
func (r *RelationshipRepository) Create(q database.DBTX, rel *models.Relationship) error {
	normalizePair(rel)
	rel.Status = models.RelationshipActive

	id, err := q.ExecReturningID(
		`INSERT INTO family_relationships (family_id, user_a_id, user_b_id, type_a_to_b, type_b_to_a, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rel.FamilyID, rel.UserAID, rel.UserBID, rel.TypeAToB, rel.TypeBToA, rel.Status, rel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}
	rel.ID = id
	return nil
}

// GetActiveBetween returns the active relationship for an unordered pair, or nil
func (r *RelationshipRepository) GetActiveBetween(q database.DBTX, familyID, userA, userB int64) (*models.Relationship, error) {
	if userA > userB {
		userA, userB = userB, userA
	}
	rel, err := scanRelationship(q.QueryRow(
		`SELECT `+relationshipCols+` FROM family_relationships
		 WHERE family_id = ? AND user_a_id = ? AND user_b_id = ? AND status = ?`,
		familyID, userA, userB, models.RelationshipActive,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return rel, nil
}

// ListByFamily returns a family's active relationships
func (r *RelationshipRepository) ListByFamily(familyID int64) ([]models.Relationship, error) {
	rows, err := r.db.Query(
		`SELECT `+relationshipCols+` FROM family_relationships
		 WHERE family_id = ? AND status = ? ORDER BY created_at ASC`,
		familyID, models.RelationshipActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var relationships []models.Relationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		relationships = append(relationships, *rel)
	}
	return relationships, rows.Err()
}

// RemoveForUser marks all of a user's relationships in a family removed
func (r *RelationshipRepository) RemoveForUser(q database.DBTX, familyID, userID int64) error {
	_, err := q.Exec(
		`UPDATE family_relationships SET status = ?
		 WHERE family_id = ? AND (user_a_id = ? OR user_b_id = ?)`,
		models.RelationshipRemoved, familyID, userID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove relationships: %w", err)
	}
	return nil
}

// DeleteByFamily removes all relationships scoped to a family
func (r *RelationshipRepository) DeleteByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM family_relationships WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete relationships: %w", err)
	}
	return nil
}
