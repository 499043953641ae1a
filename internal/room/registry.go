// Package room はプロジェクトごとのライブセッション（ルーム）の
// メンバーシップを管理する。
//
// ルームは独立したエンティティとして永続化されず、レジストリ上の
// 「プロジェクトID → 接続中クライアントIDの集合」から導出される。
// 最初のクライアントが参加した瞬間に暗黙に生まれ、最後のクライアントが
// 離脱した瞬間に消える。
package room

import "sync"

// Registry はプロジェクトとクライアントのメンバーシップを保持する。
//
// 順方向インデックス（プロジェクト → クライアント集合）と
// 逆方向インデックス（クライアント → プロジェクト）を常に同時に更新し、
// 両者の整合性を単一ミューテックスで保証する。
// 1クライアントが同時に所属できるルームは高々1つ。
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]map[string]struct{} // projectID -> clientID集合
	clients map[string]string              // clientID -> projectID
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[string]struct{}),
		clients: make(map[string]string),
	}
}

// Join はclientIDをprojectIDのルームに追加し、更新後の在室者一覧と
// 新規参加だったかどうかを返す。既に同じルームにいる場合は状態を変えず
// falseを返す（冪等）。別のルームに所属していた場合は先にそのルームから
// 離脱させる。
func (r *Registry) Join(projectID, clientID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.clients[clientID]; ok {
		if prev == projectID {
			return keys(r.rooms[projectID]), false
		}
		r.removeLocked(prev, clientID)
	}

	occupants, ok := r.rooms[projectID]
	if !ok {
		occupants = make(map[string]struct{})
		r.rooms[projectID] = occupants
	}
	occupants[clientID] = struct{}{}
	r.clients[clientID] = projectID

	return keys(occupants), true
}

// Leave はclientIDをprojectIDのルームから外し、残った在室者一覧と
// 実際に在室していたかどうかを返す。ルームが空になった場合は
// ルームエントリ自体を削除する。所属していないルームからの離脱は
// 何もせずfalseを返す（成功扱い）。呼び出し側はfalseの場合に
// 離脱アナウンスを抑止する。
func (r *Registry) Leave(projectID, clientID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clients[clientID] != projectID {
		return keys(r.rooms[projectID]), false
	}
	r.removeLocked(projectID, clientID)

	return keys(r.rooms[projectID]), true
}

// RoomOf はprojectIDのルームの現在の在室者一覧を返す。
// ルームが存在しない場合は空を返す。
func (r *Registry) RoomOf(projectID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return keys(r.rooms[projectID])
}

// Disconnect は接続断したclientIDを現在所属しているルームから外す。
// 所属ルームのプロジェクトIDと残った在室者一覧を返す。
// どのルームにも所属していない場合は空文字列とnilを返す。
func (r *Registry) Disconnect(clientID string) (string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	projectID, ok := r.clients[clientID]
	if !ok {
		return "", nil
	}
	r.removeLocked(projectID, clientID)

	return projectID, keys(r.rooms[projectID])
}

// Evict はprojectIDのルームを解体し、退去させた在室者一覧を返す。
// DeleteProjectのカスケードとして使い、各在室者の逆方向インデックスも消す。
func (r *Registry) Evict(projectID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	occupants := keys(r.rooms[projectID])
	for _, clientID := range occupants {
		delete(r.clients, clientID)
	}
	delete(r.rooms, projectID)

	return occupants
}

// ActiveRooms は現在存在するルーム数を返す。メトリクス用。
func (r *Registry) ActiveRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// removeLocked は両インデックスからclientIDを外す。mu保持中に呼ぶこと。
func (r *Registry) removeLocked(projectID, clientID string) {
	if occupants, ok := r.rooms[projectID]; ok {
		delete(occupants, clientID)
		if len(occupants) == 0 {
			delete(r.rooms, projectID)
		}
	}
	delete(r.clients, clientID)
}

// keys はクライアントID集合をスライスに変換する。nilマップには空を返す。
func keys(set map[string]struct{}) []string {
	result := make([]string, 0, len(set))
	for id := range set {
		result = append(result, id)
	}
	return result
}
