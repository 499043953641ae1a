package command

import "github.com/hitoshi/flowsync/internal/model"

// Content はクライアントに届く応答本文。MessageTypeは常に要求された
// 操作名と一致し、WasSuccessfulが操作の成否を示す。ドメインフィールドは
// 操作ごとに必要なものだけが埋まる。
type Content struct {
	MessageType   string `json:"MessageType"`
	WasSuccessful bool   `json:"WasSuccessful"`

	Message   string `json:"Message,omitempty"`
	ErrorCode string `json:"ErrorCode,omitempty"`
	Action    string `json:"Action,omitempty"`

	FlowProject  *model.Project    `json:"FlowProject,omitempty"`
	Projects     []*model.Project  `json:"Projects,omitempty"`
	FlowUser     *model.User       `json:"FlowUser,omitempty"`
	FlowObject   *model.Object     `json:"FlowObject,omitempty"`
	FlowBehavior *model.Behavior   `json:"FlowBehavior,omitempty"`
	ObjectList   []*model.Object   `json:"ObjectList,omitempty"`
	BehaviorList []*model.Behavior `json:"BehaviorList,omitempty"`
}

// Envelope は配送単位。Contentがワイヤーに載る本文、Recipientsが
// 配送先クライアントIDの一覧。Recipients自体はクライアントに送られない。
type Envelope struct {
	Content    Content
	Recipients []string
}

// NewEnvelope は応答本文と配送先からエンベロープを組み立てる。
// 副作用もI/Oも持たない純粋関数であり、トラッカーとルーターが
// ワイヤー形式を直接組み立てないための唯一の構築点。
func NewEnvelope(content Content, recipients []string) *Envelope {
	return &Envelope{Content: content, Recipients: recipients}
}
