package model

import (
	"encoding/json"
	"time"
)

// Vector3 は3次元座標・スケールを表す。
type Vector3 struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
}

// Quaternion は回転を表す。
type Quaternion struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
	W float64 `json:"W"`
}

// Object はプロジェクト内の編集対象オブジェクトを表す。
// 位置・回転・スケールの標準属性に加え、クライアント定義の任意属性を
// Attributesとしてそのまま保持する（サーバーは中身を解釈しない）。
//
// 更新には2つの経路がある:
//   - エフェメラル更新: ルームにブロードキャストされるのみで永続化されない。
//     ドラッグ中のような高頻度の途中状態に使う。
//   - 確定更新: ストアに書き込んでからブロードキャストする。
//
// 永続化された値は常に最後の確定更新のみを反映する。
type Object struct {
	ID         string          `json:"Id"`
	ProjectID  string          `json:"ProjectId"`
	Name       string          `json:"Name"`
	Position   Vector3         `json:"Position"`
	Rotation   Quaternion      `json:"Rotation"`
	Scale      Vector3         `json:"Scale"`
	Attributes json.RawMessage `json:"Attributes,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
