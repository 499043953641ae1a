package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/flowsync/internal/model"
)

// PostgresObjectRepo はPostgreSQLを使用したオブジェクトリポジトリ。
// ここを通る書き込みは確定更新のみ。エフェメラル更新はストアに到達しない。
type PostgresObjectRepo struct {
	db *sql.DB
}

// NewPostgresObjectRepo はPostgresObjectRepoを生成する。
func NewPostgresObjectRepo(db *sql.DB) *PostgresObjectRepo {
	return &PostgresObjectRepo{db: db}
}

// FindByID は指定IDのオブジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresObjectRepo) FindByID(ctx context.Context, id string) (*model.Object, error) {
	obj := &model.Object{}
	var attributes []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, name,
		        pos_x, pos_y, pos_z,
		        rot_x, rot_y, rot_z, rot_w,
		        scale_x, scale_y, scale_z,
		        attributes, created_at, updated_at
		 FROM objects WHERE id = $1`,
		id,
	).Scan(&obj.ID, &obj.ProjectID, &obj.Name,
		&obj.Position.X, &obj.Position.Y, &obj.Position.Z,
		&obj.Rotation.X, &obj.Rotation.Y, &obj.Rotation.Z, &obj.Rotation.W,
		&obj.Scale.X, &obj.Scale.Y, &obj.Scale.Z,
		&attributes, &obj.CreatedAt, &obj.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find object by ID: %w", err)
	}
	obj.Attributes = attributes

	return obj, nil
}

// ListByProject はプロジェクト内のオブジェクト一覧を作成順で返す。
func (r *PostgresObjectRepo) ListByProject(ctx context.Context, projectID string) ([]*model.Object, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, name,
		        pos_x, pos_y, pos_z,
		        rot_x, rot_y, rot_z, rot_w,
		        scale_x, scale_y, scale_z,
		        attributes, created_at, updated_at
		 FROM objects WHERE project_id = $1 ORDER BY created_at`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects by project: %w", err)
	}
	defer rows.Close()

	var objects []*model.Object
	for rows.Next() {
		obj := &model.Object{}
		var attributes []byte
		if err := rows.Scan(&obj.ID, &obj.ProjectID, &obj.Name,
			&obj.Position.X, &obj.Position.Y, &obj.Position.Z,
			&obj.Rotation.X, &obj.Rotation.Y, &obj.Rotation.Z, &obj.Rotation.W,
			&obj.Scale.X, &obj.Scale.Y, &obj.Scale.Z,
			&attributes, &obj.CreatedAt, &obj.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan object row: %w", err)
		}
		obj.Attributes = attributes
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate object rows: %w", err)
	}

	return objects, nil
}

// Create はオブジェクトを作成する。
func (r *PostgresObjectRepo) Create(ctx context.Context, object *model.Object) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO objects (id, project_id, name,
		                      pos_x, pos_y, pos_z,
		                      rot_x, rot_y, rot_z, rot_w,
		                      scale_x, scale_y, scale_z,
		                      attributes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		object.ID, object.ProjectID, object.Name,
		object.Position.X, object.Position.Y, object.Position.Z,
		object.Rotation.X, object.Rotation.Y, object.Rotation.Z, object.Rotation.W,
		object.Scale.X, object.Scale.Y, object.Scale.Z,
		nullableJSON(object.Attributes), object.CreatedAt, object.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert object: %w", err)
	}
	return nil
}

// Update はオブジェクトを上書き更新する。対象が存在しない場合はfalseを返す。
// 競合する確定更新は後勝ちとなる（バージョン検査は行わない）。
func (r *PostgresObjectRepo) Update(ctx context.Context, object *model.Object) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE objects SET name = $2,
		        pos_x = $3, pos_y = $4, pos_z = $5,
		        rot_x = $6, rot_y = $7, rot_z = $8, rot_w = $9,
		        scale_x = $10, scale_y = $11, scale_z = $12,
		        attributes = $13, updated_at = $14
		 WHERE id = $1`,
		object.ID, object.Name,
		object.Position.X, object.Position.Y, object.Position.Z,
		object.Rotation.X, object.Rotation.Y, object.Rotation.Z, object.Rotation.W,
		object.Scale.X, object.Scale.Y, object.Scale.Z,
		nullableJSON(object.Attributes), object.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update object: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByID は指定IDのオブジェクトを削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresObjectRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM objects WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete object: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// nullableJSON は空のJSONペイロードをNULLとして保存するための変換。
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// compile-time interface check
var _ ObjectRepository = (*PostgresObjectRepo)(nil)
