// Package tracker はセッション状態の正本を管理し、各ドメイン操作を実行する。
//
// 1操作につき1メソッドを公開する。各メソッドはエンティティストアと
// メンバーシップレジストリに対して操作を実行し、結果と通知先クライアント、
// 必要に応じてルームアナウンスを返す。レジストリへの書き込みは
// ストアI/Oの待機中には行わないため、レジストリの各変更は操作間で
// 原子的に見える。
//
// 同一オブジェクトに対する複数クライアントの確定更新は直列化しない。
// 後に完了した確定更新が永続状態を決める（後勝ち）。これは共同編集の
// 許容されたトレードオフであり、バージョン検査は行わない。
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/flowsync/internal/model"
	"github.com/hitoshi/flowsync/internal/repository"
	"github.com/hitoshi/flowsync/internal/room"
)

// RoomAnnouncement はルーム在室者への副次通知を表す。
// 操作が成功した場合にのみ生成され、要求元以外の在室者へ送られる。
type RoomAnnouncement struct {
	MessageType string   // "UserJoinedRoom" または "UserLeftRoom"
	Username    string   // 参加・離脱したユーザー名
	Recipients  []string // 通知先（要求元を含まない在室者）
}

// TextSanitizer はクライアント由来の表示テキストの無害化インターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Tracker はドメイン操作の実行主体。
// メンバーシップレジストリと認証セッション索引を排他的に所有し、
// 永続書き込みはリポジトリに委譲するが「何を書くか」の決定を直列化する。
type Tracker struct {
	users     repository.UserRepository
	projects  repository.ProjectRepository
	objects   repository.ObjectRepository
	behaviors repository.BehaviorRepository

	registry  *room.Registry
	sessions  *sessionIndex
	sanitizer TextSanitizer
}

// New はTrackerを生成する。
func New(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	objects repository.ObjectRepository,
	behaviors repository.BehaviorRepository,
	registry *room.Registry,
	sanitizer TextSanitizer,
) *Tracker {
	return &Tracker{
		users:     users,
		projects:  projects,
		objects:   objects,
		behaviors: behaviors,
		registry:  registry,
		sessions:  newSessionIndex(),
		sanitizer: sanitizer,
	}
}

// Registry はメンバーシップレジストリを返す。メトリクスゲージ用。
func (t *Tracker) Registry() *room.Registry {
	return t.registry
}

// --- プロジェクト操作 ---

// CreateProject は新しいIDを払い出してプロジェクトを永続化する。
// 作成は要求元にのみ通知され、ブロードキャストされない。
func (t *Tracker) CreateProject(ctx context.Context, project *model.Project, owner, client string) (*model.Project, []string, error) {
	user, err := t.users.FindByUsername(ctx, owner)
	if err != nil {
		return nil, nil, fmt.Errorf("プロジェクト所有者の取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError(owner)
	}

	now := time.Now()
	project.ID = uuid.NewString()
	project.Owner = owner
	project.Name = t.sanitizer.Sanitize(project.Name)
	project.Description = t.sanitizer.Sanitize(project.Description)
	project.ObjectList = nil
	project.BehaviorList = nil
	project.CreatedAt = now
	project.UpdatedAt = now

	if err := t.projects.Create(ctx, project); err != nil {
		return nil, nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}

	slog.Info("project created",
		slog.String("project_id", project.ID),
		slog.String("owner", owner),
	)

	return project, []string{client}, nil
}

// ReadProject はプロジェクトをオブジェクト・ビヘイビア一覧付きで取得する。
func (t *Tracker) ReadProject(ctx context.Context, projectID, client string) (*model.Project, []string, error) {
	project, err := t.loadProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return project, []string{client}, nil
}

// DeleteProject はプロジェクトを配下ごと削除し、ルームを解体する。
// 在室者全員が強制退去となるため、削除通知は要求元と退去者全員に届く。
func (t *Tracker) DeleteProject(ctx context.Context, projectID, username, client string) ([]string, error) {
	project, err := t.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}

	if err := t.projects.DeleteByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}

	evicted := t.registry.Evict(projectID)

	slog.Info("project deleted",
		slog.String("project_id", projectID),
		slog.String("requested_by", username),
		slog.Int("evicted", len(evicted)),
	)

	return appendUnique(evicted, client), nil
}

// OpenProject はプロジェクトを読み込んでルームに参加する。
// 既存在室者には UserJoinedRoom のアナウンスが生成される。
// プロジェクトが見つからない場合は参加せず、ルームは変化しない。
func (t *Tracker) OpenProject(ctx context.Context, projectID, username, client string) (*model.Project, []string, *RoomAnnouncement, error) {
	project, err := t.loadProject(ctx, projectID)
	if err != nil {
		return nil, nil, nil, err
	}

	occupants, joined := t.registry.Join(projectID, client)
	others := exclude(occupants, client)

	// 再オープン（既に在室）のときは参加アナウンスを出さない。
	var announcement *RoomAnnouncement
	if joined && len(others) > 0 {
		announcement = &RoomAnnouncement{
			MessageType: "UserJoinedRoom",
			Username:    username,
			Recipients:  others,
		}
	}

	slog.Info("client joined room",
		slog.String("project_id", projectID),
		slog.String("username", username),
		slog.String("client_id", client),
		slog.Int("occupants", len(occupants)),
	)

	return project, []string{client}, announcement, nil
}

// LeaveProject はルームから離脱する。未所属のルームからの離脱も成功扱いだが、
// 在室していなかった場合は誰も離脱していないためアナウンスは生成しない。
// 実際に離脱した場合のみ、残った在室者に UserLeftRoom のアナウンスが生成される。
func (t *Tracker) LeaveProject(ctx context.Context, projectID, username, client string) ([]string, *RoomAnnouncement, error) {
	remaining, left := t.registry.Leave(projectID, client)

	var announcement *RoomAnnouncement
	if left && len(remaining) > 0 {
		announcement = &RoomAnnouncement{
			MessageType: "UserLeftRoom",
			Username:    username,
			Recipients:  remaining,
		}
	}

	slog.Info("client left room",
		slog.String("project_id", projectID),
		slog.String("username", username),
		slog.String("client_id", client),
	)

	return []string{client}, announcement, nil
}

// FetchProjects はユーザーが所有するプロジェクト一覧を返す。要求元にのみ届く。
func (t *Tracker) FetchProjects(ctx context.Context, username, client string) ([]*model.Project, []string, error) {
	user, err := t.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError(username)
	}

	projects, err := t.projects.ListByOwner(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}

	return projects, []string{client}, nil
}

// PopulateRoom は後から参加したクライアントが現在のプロジェクト状態に
// 追いつくための読み込み操作。オブジェクト・ビヘイビア一覧を返す。
func (t *Tracker) PopulateRoom(ctx context.Context, projectID, client string) (*model.Project, []string, error) {
	project, err := t.loadProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return project, []string{client}, nil
}

// loadProject はプロジェクトをオブジェクト・ビヘイビア一覧付きで読み込む。
func (t *Tracker) loadProject(ctx context.Context, projectID string) (*model.Project, error) {
	project, err := t.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, model.NewProjectNotFoundError(projectID)
	}

	objects, err := t.objects.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("オブジェクト一覧の取得に失敗しました: %w", err)
	}
	behaviors, err := t.behaviors.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ビヘイビア一覧の取得に失敗しました: %w", err)
	}
	project.ObjectList = objects
	project.BehaviorList = behaviors

	return project, nil
}

// --- ユーザー操作 ---

// CreateUser はユーザーを作成する。資格情報はbcryptでハッシュして保存する。
func (t *Tracker) CreateUser(ctx context.Context, username, password, client string) ([]string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := t.users.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicate {
			return nil, model.NewUserExistsError(username)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user created", slog.String("username", username))

	return []string{client}, nil
}

// DeleteUser はユーザーを削除する。資格情報の検証に成功した場合のみ実行し、
// そのユーザーの認証済みセッションを全て解除してルームからも退去させる。
func (t *Tracker) DeleteUser(ctx context.Context, username, password, client string) ([]string, error) {
	if err := t.verifyCredentials(ctx, username, password); err != nil {
		return nil, err
	}

	// ライブセッションの解体。接続自体の切断はトランスポート層の責務。
	for _, clientID := range t.sessions.dropUser(username) {
		t.registry.Disconnect(clientID)
	}

	if err := t.users.DeleteByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("user deleted", slog.String("username", username))

	return []string{client}, nil
}

// LoginUser は資格情報を検証し、クライアントを認証済みセッションとして登録する。
func (t *Tracker) LoginUser(ctx context.Context, username, password, client string) ([]string, error) {
	if err := t.verifyCredentials(ctx, username, password); err != nil {
		return nil, err
	}

	t.sessions.attach(username, client)

	slog.Info("user logged in",
		slog.String("username", username),
		slog.String("client_id", client),
	)

	return []string{client}, nil
}

// LogoutUser はクライアントの認証済みセッションを解除する。冪等。
func (t *Tracker) LogoutUser(ctx context.Context, username, client string) ([]string, error) {
	t.sessions.detach(client)

	slog.Info("user logged out",
		slog.String("username", username),
		slog.String("client_id", client),
	)

	return []string{client}, nil
}

// ReadUser はユーザー情報を取得する。資格情報は含まれない。
func (t *Tracker) ReadUser(ctx context.Context, username, client string) (*model.User, []string, error) {
	user, err := t.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError(username)
	}
	user.PasswordHash = ""
	return user, []string{client}, nil
}

// verifyCredentials はユーザーの存在とパスワードを検証する。
// 不在と不一致はどちらもAUTH_FAILEDとして返す。
func (t *Tracker) verifyCredentials(ctx context.Context, username, password string) error {
	user, err := t.users.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewAuthFailedError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.NewAuthFailedError()
	}
	return nil
}

// --- オブジェクト操作 ---

// CreateObject は新しいIDを払い出してオブジェクトを永続化する。
// サーバー払い出しのIDを要求元も知る必要があるため、ブロードキャストは
// 要求元を含むルーム全員に届く。
func (t *Tracker) CreateObject(ctx context.Context, object *model.Object, projectID, client string) (*model.Object, []string, error) {
	project, err := t.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil {
		return nil, nil, model.NewProjectNotFoundError(projectID)
	}

	now := time.Now()
	object.ID = uuid.NewString()
	object.ProjectID = projectID
	object.Name = t.sanitizer.Sanitize(object.Name)
	object.CreatedAt = now
	object.UpdatedAt = now

	if err := t.objects.Create(ctx, object); err != nil {
		return nil, nil, fmt.Errorf("オブジェクトの作成に失敗しました: %w", err)
	}

	return object, appendUnique(t.registry.RoomOf(projectID), client), nil
}

// ReadObject はオブジェクトを取得する。要求元にのみ届く。
func (t *Tracker) ReadObject(ctx context.Context, objectID, client string) (*model.Object, []string, error) {
	object, err := t.objects.FindByID(ctx, objectID)
	if err != nil {
		return nil, nil, fmt.Errorf("オブジェクトの取得に失敗しました: %w", err)
	}
	if object == nil {
		return nil, nil, model.NewObjectNotFoundError(objectID)
	}
	return object, []string{client}, nil
}

// UpdateObject はオブジェクトを更新する。
//
// finalizeがfalseの場合はエンティティストアに一切触れず、要求元以外の
// 在室者へのブロードキャストのみを計画する。ドラッグ中のような高頻度の
// 途中状態を書き込みコストなしで配るための経路であり、クラッシュしても
// 永続状態には何も残らない。
//
// finalizeがtrueの場合は先に永続化し、その後同じ通知先計算を行う。
// 競合する確定更新は後勝ちとなる。
func (t *Tracker) UpdateObject(ctx context.Context, object *model.Object, projectID, client string, finalize bool) (*model.Object, []string, error) {
	// 表示テキストはエフェメラル経路でも配布前に無害化する。
	object.Name = t.sanitizer.Sanitize(object.Name)

	if finalize {
		object.UpdatedAt = time.Now()
		ok, err := t.objects.Update(ctx, object)
		if err != nil {
			return nil, nil, fmt.Errorf("オブジェクトの更新に失敗しました: %w", err)
		}
		if !ok {
			return nil, nil, model.NewObjectNotFoundError(object.ID)
		}
	}

	return object, exclude(t.registry.RoomOf(projectID), client), nil
}

// DeleteObject はオブジェクトを削除し、要求元以外の在室者に通知する。
func (t *Tracker) DeleteObject(ctx context.Context, objectID, projectID, client string) ([]string, error) {
	ok, err := t.objects.DeleteByID(ctx, objectID)
	if err != nil {
		return nil, fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewObjectNotFoundError(objectID)
	}

	return exclude(t.registry.RoomOf(projectID), client), nil
}

// --- ビヘイビア操作 ---

// CreateBehavior は新しいIDを払い出してビヘイビアを永続化する。
// オブジェクト同様、サーバー払い出しIDのため要求元を含めて通知する。
func (t *Tracker) CreateBehavior(ctx context.Context, behavior *model.Behavior, projectID, client string) (*model.Behavior, []string, error) {
	object, err := t.objects.FindByID(ctx, behavior.ObjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("対象オブジェクトの取得に失敗しました: %w", err)
	}
	if object == nil {
		return nil, nil, model.NewObjectNotFoundError(behavior.ObjectID)
	}

	now := time.Now()
	behavior.ID = uuid.NewString()
	behavior.ProjectID = projectID
	behavior.Name = t.sanitizer.Sanitize(behavior.Name)
	behavior.CreatedAt = now
	behavior.UpdatedAt = now

	if err := t.behaviors.Create(ctx, behavior); err != nil {
		return nil, nil, fmt.Errorf("ビヘイビアの作成に失敗しました: %w", err)
	}

	return behavior, appendUnique(t.registry.RoomOf(projectID), client), nil
}

// ReadBehavior はビヘイビアを取得する。要求元にのみ届く。
func (t *Tracker) ReadBehavior(ctx context.Context, behaviorID, client string) (*model.Behavior, []string, error) {
	behavior, err := t.behaviors.FindByID(ctx, behaviorID)
	if err != nil {
		return nil, nil, fmt.Errorf("ビヘイビアの取得に失敗しました: %w", err)
	}
	if behavior == nil {
		return nil, nil, model.NewBehaviorNotFoundError(behaviorID)
	}
	return behavior, []string{client}, nil
}

// UpdateBehavior はビヘイビアを永続化してから要求元以外の在室者に通知する。
// ビヘイビアにエフェメラル経路はない。
func (t *Tracker) UpdateBehavior(ctx context.Context, behavior *model.Behavior, projectID, client string) (*model.Behavior, []string, error) {
	behavior.Name = t.sanitizer.Sanitize(behavior.Name)
	behavior.UpdatedAt = time.Now()
	ok, err := t.behaviors.Update(ctx, behavior)
	if err != nil {
		return nil, nil, fmt.Errorf("ビヘイビアの更新に失敗しました: %w", err)
	}
	if !ok {
		return nil, nil, model.NewBehaviorNotFoundError(behavior.ID)
	}

	return behavior, exclude(t.registry.RoomOf(projectID), client), nil
}

// DeleteBehavior はビヘイビアを削除し、要求元以外の在室者に通知する。
func (t *Tracker) DeleteBehavior(ctx context.Context, behaviorID, projectID, client string) ([]string, error) {
	ok, err := t.behaviors.DeleteByID(ctx, behaviorID)
	if err != nil {
		return nil, fmt.Errorf("ビヘイビアの削除に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewBehaviorNotFoundError(behaviorID)
	}

	return exclude(t.registry.RoomOf(projectID), client), nil
}

// --- 接続断 ---

// Disconnect はトランスポート層から接続断時に呼ばれる。
// 所属ルームからの離脱と認証済みセッションの解除を行う。
// 実行中の操作は完了まで走り、その通知先は完了時点のメンバーシップから
// 計算されるため、切断済みクライアントは自然に除外される。
func (t *Tracker) Disconnect(clientID string) {
	projectID, _ := t.registry.Disconnect(clientID)
	username := t.sessions.detach(clientID)

	slog.Info("client disconnected",
		slog.String("client_id", clientID),
		slog.String("project_id", projectID),
		slog.String("username", username),
	)
}

// --- ヘルパー ---

// exclude はidsからtargetを除いたスライスを返す。
func exclude(ids []string, target string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != target {
			result = append(result, id)
		}
	}
	return result
}

// appendUnique はidsにtargetが含まれていなければ追加して返す。
func appendUnique(ids []string, target string) []string {
	for _, id := range ids {
		if id == target {
			return ids
		}
	}
	return append(ids, target)
}
