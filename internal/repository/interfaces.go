// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/flowsync/internal/model"
)

// ErrDuplicate は一意制約違反（ユーザー名重複など）を表す。
var ErrDuplicate = errors.New("repository: duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByUsername は指定ユーザー名のユーザーを削除する。
	// 所有プロジェクトとその配下のオブジェクト・ビヘイビアはCASCADE削除される。
	DeleteByUsername(ctx context.Context, username string) error
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	// ObjectList / BehaviorListは埋めない。必要な場合は呼び出し側で
	// ObjectRepository / BehaviorRepositoryから読み込む。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// ListByOwner は指定ユーザーが所有するプロジェクト一覧を作成日時順で返す。
	ListByOwner(ctx context.Context, owner string) ([]*model.Project, error)

	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// DeleteByID は指定IDのプロジェクトを削除する。
	// 配下のオブジェクト・ビヘイビアはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// ObjectRepository はオブジェクトデータの永続化インターフェース。
// 確定更新のみがここを通る。エフェメラル更新は永続化されない。
type ObjectRepository interface {
	// FindByID は指定IDのオブジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Object, error)

	// ListByProject はプロジェクト内のオブジェクト一覧を作成順で返す。
	ListByProject(ctx context.Context, projectID string) ([]*model.Object, error)

	// Create はオブジェクトを作成する。
	Create(ctx context.Context, object *model.Object) error

	// Update はオブジェクトを上書き更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, object *model.Object) (bool, error)

	// DeleteByID は指定IDのオブジェクトを削除する。対象が存在しない場合はfalseを返す。
	// 付随するビヘイビアはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// BehaviorRepository はビヘイビアデータの永続化インターフェース。
type BehaviorRepository interface {
	// FindByID は指定IDのビヘイビアを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Behavior, error)

	// ListByProject はプロジェクト内のビヘイビア一覧を作成順で返す。
	ListByProject(ctx context.Context, projectID string) ([]*model.Behavior, error)

	// Create はビヘイビアを作成する。
	Create(ctx context.Context, behavior *model.Behavior) error

	// Update はビヘイビアを上書き更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, behavior *model.Behavior) (bool, error)

	// DeleteByID は指定IDのビヘイビアを削除する。対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}
