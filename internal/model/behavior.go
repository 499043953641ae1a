package model

import (
	"encoding/json"
	"time"
)

// Behavior はオブジェクトに付随する振る舞い定義を表す。
// スクリプト・パラメータはクライアント定義のペイロードとしてそのまま保持する。
// オブジェクトと異なりエフェメラル更新の経路はなく、更新は常に永続化される。
type Behavior struct {
	ID        string          `json:"Id"`
	ProjectID string          `json:"ProjectId"`
	ObjectID  string          `json:"ObjectId"`
	Name      string          `json:"Name"`
	Trigger   string          `json:"Trigger,omitempty"`
	Script    json.RawMessage `json:"Script,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
