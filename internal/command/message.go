package command

import (
	"encoding/json"

	"github.com/hitoshi/flowsync/internal/model"
)

// Message はトランスポート層から渡される受信メッセージ。
// payloadの中身は操作ごとに異なるため、各ハンドラーが必要な
// フィールドだけを型付きリクエストとして取り出す。
type Message struct {
	OperationName string          `json:"operationName"`
	Payload       json.RawMessage `json:"payload"`
}

// userRef はペイロード中のユーザー参照。
type userRef struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// projectRef はペイロード中のプロジェクト参照。
type projectRef struct {
	ID string `json:"Id"`
}

type createProjectRequest struct {
	Project  model.Project `json:"Project"`
	FlowUser userRef       `json:"flowUser"`
}

type readProjectRequest struct {
	FlowProject projectRef `json:"FlowProject"`
}

type deleteProjectRequest struct {
	FlowProject projectRef `json:"FlowProject"`
	FlowUser    userRef    `json:"flowUser"`
}

type openProjectRequest struct {
	ProjectID string  `json:"ProjectId"`
	FlowUser  userRef `json:"flowUser"`
}

type leaveProjectRequest struct {
	ProjectID string  `json:"ProjectId"`
	FlowUser  userRef `json:"flowUser"`
}

type fetchProjectsRequest struct {
	FlowUser userRef `json:"flowUser"`
}

type populateRoomRequest struct {
	Project projectRef `json:"Project"`
}

type userRequest struct {
	FlowUser userRef `json:"flowUser"`
}

// deleteUserRequest のみ資格情報がペイロード直下に置かれる。
type deleteUserRequest struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

type objectRequest struct {
	FlowObject model.Object `json:"flowObject"`
	ProjectID  string       `json:"projectId"`
}

type behaviorRequest struct {
	FlowBehavior model.Behavior `json:"flowBehavior"`
	ProjectID    string         `json:"projectId"`
}

// unmarshalPayload はペイロードを型付きリクエストに変換する。
// 欠落・不正なペイロードはINVALID_PAYLOADとして呼び出し元に返る。
func unmarshalPayload(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return model.NewInvalidPayloadError("ペイロードがありません")
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return model.NewInvalidPayloadError(err.Error())
	}
	return nil
}
