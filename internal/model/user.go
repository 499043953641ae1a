package model

import "time"

// User はサービス利用ユーザーを表す。
// Usernameが一意な識別子となる。認証資格情報はbcryptハッシュのみ保持し、
// ワイヤーフォーマットには決して含めない。
type User struct {
	Username     string `json:"Username"`
	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
