package tracker

import "sync"

// sessionIndex は認証済みクライアントセッションのインメモリ索引。
// ユーザー → クライアント集合とクライアント → ユーザーの両方向を
// 単一ミューテックスで整合させる。接続の寿命に紐づくため永続化しない。
type sessionIndex struct {
	mu       sync.Mutex
	byUser   map[string]map[string]struct{}
	byClient map[string]string
}

func newSessionIndex() *sessionIndex {
	return &sessionIndex{
		byUser:   make(map[string]map[string]struct{}),
		byClient: make(map[string]string),
	}
}

// attach はclientIDをusernameの認証済みセッションとして登録する。
// 別ユーザーとして認証済みだった場合は付け替える。
func (s *sessionIndex) attach(username, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byClient[clientID]; ok && prev != username {
		s.removeLocked(prev, clientID)
	}

	clients, ok := s.byUser[username]
	if !ok {
		clients = make(map[string]struct{})
		s.byUser[username] = clients
	}
	clients[clientID] = struct{}{}
	s.byClient[clientID] = username
}

// detach はclientIDのセッションを解除し、認証されていたユーザー名を返す。
// 未認証クライアントには空文字列を返す（冪等）。
func (s *sessionIndex) detach(clientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.byClient[clientID]
	if !ok {
		return ""
	}
	s.removeLocked(username, clientID)
	return username
}

// dropUser はusernameの全セッションを解除し、解除したクライアント一覧を返す。
// DeleteUserのカスケードとして使う。
func (s *sessionIndex) dropUser(username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make([]string, 0, len(s.byUser[username]))
	for clientID := range s.byUser[username] {
		delete(s.byClient, clientID)
		clients = append(clients, clientID)
	}
	delete(s.byUser, username)
	return clients
}

// usernameOf はclientIDが認証されているユーザー名を返す。未認証なら空文字列。
func (s *sessionIndex) usernameOf(clientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byClient[clientID]
}

func (s *sessionIndex) removeLocked(username, clientID string) {
	if clients, ok := s.byUser[username]; ok {
		delete(clients, clientID)
		if len(clients) == 0 {
			delete(s.byUser, username)
		}
	}
	delete(s.byClient, clientID)
}
