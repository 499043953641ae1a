package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/flowsync/internal/model"
)

// PostgresBehaviorRepo はPostgreSQLを使用したビヘイビアリポジトリ。
type PostgresBehaviorRepo struct {
	db *sql.DB
}

// NewPostgresBehaviorRepo はPostgresBehaviorRepoを生成する。
func NewPostgresBehaviorRepo(db *sql.DB) *PostgresBehaviorRepo {
	return &PostgresBehaviorRepo{db: db}
}

// FindByID は指定IDのビヘイビアを取得する。見つからない場合はnilを返す。
func (r *PostgresBehaviorRepo) FindByID(ctx context.Context, id string) (*model.Behavior, error) {
	behavior := &model.Behavior{}
	var script []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, object_id, name, trigger_kind, script, created_at, updated_at
		 FROM behaviors WHERE id = $1`,
		id,
	).Scan(&behavior.ID, &behavior.ProjectID, &behavior.ObjectID, &behavior.Name,
		&behavior.Trigger, &script, &behavior.CreatedAt, &behavior.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find behavior by ID: %w", err)
	}
	behavior.Script = script

	return behavior, nil
}

// ListByProject はプロジェクト内のビヘイビア一覧を作成順で返す。
func (r *PostgresBehaviorRepo) ListByProject(ctx context.Context, projectID string) ([]*model.Behavior, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, object_id, name, trigger_kind, script, created_at, updated_at
		 FROM behaviors WHERE project_id = $1 ORDER BY created_at`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list behaviors by project: %w", err)
	}
	defer rows.Close()

	var behaviors []*model.Behavior
	for rows.Next() {
		behavior := &model.Behavior{}
		var script []byte
		if err := rows.Scan(&behavior.ID, &behavior.ProjectID, &behavior.ObjectID, &behavior.Name,
			&behavior.Trigger, &script, &behavior.CreatedAt, &behavior.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan behavior row: %w", err)
		}
		behavior.Script = script
		behaviors = append(behaviors, behavior)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate behavior rows: %w", err)
	}

	return behaviors, nil
}

// Create はビヘイビアを作成する。
func (r *PostgresBehaviorRepo) Create(ctx context.Context, behavior *model.Behavior) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO behaviors (id, project_id, object_id, name, trigger_kind, script, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		behavior.ID, behavior.ProjectID, behavior.ObjectID, behavior.Name,
		behavior.Trigger, nullableJSON(behavior.Script), behavior.CreatedAt, behavior.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert behavior: %w", err)
	}
	return nil
}

// Update はビヘイビアを上書き更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresBehaviorRepo) Update(ctx context.Context, behavior *model.Behavior) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE behaviors SET name = $2, trigger_kind = $3, script = $4, updated_at = $5
		 WHERE id = $1`,
		behavior.ID, behavior.Name, behavior.Trigger,
		nullableJSON(behavior.Script), behavior.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update behavior: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByID は指定IDのビヘイビアを削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresBehaviorRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM behaviors WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete behavior: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ BehaviorRepository = (*PostgresBehaviorRepo)(nil)
