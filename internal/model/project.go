// Package model はドメインモデルを定義する。
package model

import "time"

// Project は共同編集の対象となるプロジェクトを表す。
// オブジェクトとビヘイビアの集合を所有し、所有ユーザーに紐づく。
// ObjectList / BehaviorList は読み込み操作（OpenProject, PopulateRoom等）で
// のみ埋められ、永続化はそれぞれ objects / behaviors テーブルが担う。
type Project struct {
	ID          string `json:"Id"`
	Owner       string `json:"Owner"`
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`

	ObjectList   []*Object   `json:"ObjectList,omitempty"`
	BehaviorList []*Behavior `json:"BehaviorList,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
