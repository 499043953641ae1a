// Package command は操作名からハンドラーへのディスパッチを提供する。
//
// ルーター自体は状態を持たない。各ハンドラーはペイロードから必要な
// フィールドだけを取り出してトラッカーのメソッドを1つ呼び、結果と
// 通知先をエンベロープに詰めて返す。未登録の操作名や解釈できない
// ペイロードは要求元だけに届く失敗エンベロープに変換され、
// ディスパッチループを決して落とさない。
package command

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/flowsync/internal/metrics"
	"github.com/hitoshi/flowsync/internal/model"
	"github.com/hitoshi/flowsync/internal/tracker"
)

// handlerFunc は1操作のハンドラー。主応答と、あればルームアナウンスを返す。
type handlerFunc func(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error)

// Router は操作名をハンドラーにディスパッチする。
// ディスパッチテーブルは生成時に一度だけ構築され、以後変更されない。
type Router struct {
	tracker  *tracker.Tracker
	observer metrics.CommandObserver
	handlers map[string]handlerFunc
}

// NewRouter はRouterを生成する。
func NewRouter(t *tracker.Tracker, observer metrics.CommandObserver) *Router {
	r := &Router{tracker: t, observer: observer}
	r.handlers = map[string]handlerFunc{
		// プロジェクト操作
		"CreateProject": r.createProject,
		"ReadProject":   r.readProject,
		"DeleteProject": r.deleteProject,
		"OpenProject":   r.openProject,
		"LeaveProject":  r.leaveProject,
		"FetchProjects": r.fetchProjects,
		"PopulateRoom":  r.populateRoom,

		// ユーザー操作
		"CreateUser": r.createUser,
		"DeleteUser": r.deleteUser,
		"LoginUser":  r.loginUser,
		"LogoutUser": r.logoutUser,
		"ReadUser":   r.readUser,

		// オブジェクト操作
		"CreateObject":          r.createObject,
		"ReadObject":            r.readObject,
		"UpdateObject":          r.updateObject,
		"FinalizedUpdateObject": r.finalizedUpdateObject,
		"DeleteObject":          r.deleteObject,

		// ビヘイビア操作
		"CreateBehavior": r.createBehavior,
		"ReadBehavior":   r.readBehavior,
		"UpdateBehavior": r.updateBehavior,
		"DeleteBehavior": r.deleteBehavior,
	}
	return r
}

// Dispatch は受信メッセージを実行し、配送すべきエンベロープ一覧を返す。
// 成功時は主応答（+あればアナウンス）、失敗時は要求元だけに届く
// 失敗エンベロープを必ず1つ返す。
func (r *Router) Dispatch(ctx context.Context, clientID string, raw []byte) []*Envelope {
	start := time.Now()

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("unparsable message",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		r.observer.RecordCommand("unparsable", false, time.Since(start))
		return []*Envelope{failureEnvelope("", clientID, model.NewInvalidPayloadError(err.Error()))}
	}

	handler, ok := r.handlers[msg.OperationName]
	if !ok {
		slog.Warn("unknown operation",
			slog.String("client_id", clientID),
			slog.String("operation", msg.OperationName),
		)
		r.observer.RecordCommand(msg.OperationName, false, time.Since(start))
		return []*Envelope{failureEnvelope(msg.OperationName, clientID, model.NewUnknownCommandError(msg.OperationName))}
	}

	primary, announcement, err := handler(ctx, clientID, msg.Payload)
	if err != nil {
		var cmdErr *model.CommandError
		if !errors.As(err, &cmdErr) {
			// ストア障害等の内部エラー。詳細はログにのみ残す。
			slog.Error("command failed",
				slog.String("client_id", clientID),
				slog.String("operation", msg.OperationName),
				slog.String("error", err.Error()),
			)
			cmdErr = model.NewStorageError()
		}
		r.observer.RecordCommand(msg.OperationName, false, time.Since(start))
		return []*Envelope{failureEnvelope(msg.OperationName, clientID, cmdErr)}
	}

	r.observer.RecordCommand(msg.OperationName, true, time.Since(start))

	envelopes := []*Envelope{primary}
	if announcement != nil {
		envelopes = append(envelopes, announcement)
	}
	return envelopes
}

// failureEnvelope は要求元だけに届く失敗エンベロープを組み立てる。
func failureEnvelope(operation, clientID string, cmdErr *model.CommandError) *Envelope {
	return NewEnvelope(Content{
		MessageType:   operation,
		WasSuccessful: false,
		Message:       cmdErr.Message,
		ErrorCode:     cmdErr.Code,
		Action:        cmdErr.Action,
	}, []string{clientID})
}

// announcementEnvelope はルームアナウンスをエンベロープに変換する。
func announcementEnvelope(a *tracker.RoomAnnouncement) *Envelope {
	if a == nil {
		return nil
	}
	return NewEnvelope(Content{
		MessageType:   a.MessageType,
		WasSuccessful: true,
		Message:       a.Username,
	}, a.Recipients)
}

// --- プロジェクト操作 ---

func (r *Router) createProject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req createProjectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowUser.Username == "" {
		return nil, nil, model.NewInvalidPayloadError("flowUser.Usernameは必須です")
	}

	project := req.Project
	created, recipients, err := r.tracker.CreateProject(ctx, &project, req.FlowUser.Username, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "CreateProject",
		WasSuccessful: true,
		FlowProject:   created,
	}, recipients), nil, nil
}

func (r *Router) readProject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req readProjectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowProject.ID == "" {
		return nil, nil, model.NewInvalidPayloadError("FlowProject.Idは必須です")
	}

	project, recipients, err := r.tracker.ReadProject(ctx, req.FlowProject.ID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "ReadProject",
		WasSuccessful: true,
		FlowProject:   project,
	}, recipients), nil, nil
}

func (r *Router) deleteProject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req deleteProjectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowProject.ID == "" {
		return nil, nil, model.NewInvalidPayloadError("FlowProject.Idは必須です")
	}

	recipients, err := r.tracker.DeleteProject(ctx, req.FlowProject.ID, req.FlowUser.Username, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "DeleteProject",
		WasSuccessful: true,
	}, recipients), nil, nil
}

func (r *Router) openProject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req openProjectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.ProjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("ProjectIdは必須です")
	}

	project, recipients, announcement, err := r.tracker.OpenProject(ctx, req.ProjectID, req.FlowUser.Username, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "OpenProject",
		WasSuccessful: true,
		FlowProject:   project,
	}, recipients), announcementEnvelope(announcement), nil
}

func (r *Router) leaveProject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req leaveProjectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.ProjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("ProjectIdは必須です")
	}

	recipients, announcement, err := r.tracker.LeaveProject(ctx, req.ProjectID, req.FlowUser.Username, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "LeaveProject",
		WasSuccessful: true,
	}, recipients), announcementEnvelope(announcement), nil
}

func (r *Router) fetchProjects(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req fetchProjectsRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowUser.Username == "" {
		return nil, nil, model.NewInvalidPayloadError("flowUser.Usernameは必須です")
	}

	projects, recipients, err := r.tracker.FetchProjects(ctx, req.FlowUser.Username, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "FetchProjects",
		WasSuccessful: true,
		Projects:      projects,
	}, recipients), nil, nil
}

func (r *Router) populateRoom(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req populateRoomRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.Project.ID == "" {
		return nil, nil, model.NewInvalidPayloadError("Project.Idは必須です")
	}

	project, recipients, err := r.tracker.PopulateRoom(ctx, req.Project.ID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "PopulateRoom",
		WasSuccessful: true,
		ObjectList:    project.ObjectList,
		BehaviorList:  project.BehaviorList,
	}, recipients), nil, nil
}

// --- ユーザー操作 ---

func (r *Router) createUser(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req userRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowUser.Username == "" || req.FlowUser.Password == "" {
		return nil, nil, model.NewInvalidPayloadError("flowUser.UsernameとPasswordは必須です")
	}

	recipients, err := r.tracker.CreateUser(ctx, req.FlowUser.Username, req.FlowUser.Password, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "CreateUser",
		WasSuccessful: true,
	}, recipients), nil, nil
}

func (r *Router) deleteUser(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req deleteUserRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.Username == "" || req.Password == "" {
		return nil, nil, model.NewInvalidPayloadError("UsernameとPasswordは必須です")
	}

	recipients, err := r.tracker.DeleteUser(ctx, req.Username, req.Password, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "DeleteUser",
		WasSuccessful: true,
	}, recipients), nil, nil
}

func (r *Router) loginUser(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req userRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowUser.Username == "" {
		return nil, nil, model.NewInvalidPayloadError("flowUser.Usernameは必須です")
	}

	recipients, err := r.tracker.LoginUser(ctx, req.FlowUser.Username, req.FlowUser.Password, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "LoginUser",
		WasSuccessful: true,
	}, recipients), nil, nil
}

func (r *Router) logoutUser(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req userRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}

	recipients, err := r.tracker.LogoutUser(ctx, req.FlowUser.Username, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "LogoutUser",
		WasSuccessful: true,
	}, recipients), nil, nil
}

func (r *Router) readUser(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req userRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowUser.Username == "" {
		return nil, nil, model.NewInvalidPayloadError("flowUser.Usernameは必須です")
	}

	user, recipients, err := r.tracker.ReadUser(ctx, req.FlowUser.Username, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "ReadUser",
		WasSuccessful: true,
		FlowUser:      user,
	}, recipients), nil, nil
}

// --- オブジェクト操作 ---

func (r *Router) createObject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req objectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.ProjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("projectIdは必須です")
	}

	object := req.FlowObject
	created, recipients, err := r.tracker.CreateObject(ctx, &object, req.ProjectID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "CreateObject",
		WasSuccessful: true,
		FlowObject:    created,
	}, recipients), nil, nil
}

func (r *Router) readObject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req objectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowObject.ID == "" {
		return nil, nil, model.NewInvalidPayloadError("flowObject.Idは必須です")
	}

	object, recipients, err := r.tracker.ReadObject(ctx, req.FlowObject.ID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "ReadObject",
		WasSuccessful: true,
		FlowObject:    object,
	}, recipients), nil, nil
}

// updateObject はエフェメラル経路。永続化せずブロードキャストのみ行う。
func (r *Router) updateObject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	envelope, announcement, err := r.dispatchObjectUpdate(ctx, clientID, payload, "UpdateObject", false)
	if err == nil {
		r.observer.RecordEphemeralUpdate()
	}
	return envelope, announcement, err
}

// finalizedUpdateObject は確定経路。永続化してからブロードキャストする。
func (r *Router) finalizedUpdateObject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	envelope, announcement, err := r.dispatchObjectUpdate(ctx, clientID, payload, "FinalizedUpdateObject", true)
	if err == nil {
		r.observer.RecordFinalizedUpdate()
	}
	return envelope, announcement, err
}

func (r *Router) dispatchObjectUpdate(ctx context.Context, clientID string, payload json.RawMessage, messageType string, finalize bool) (*Envelope, *Envelope, error) {
	var req objectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowObject.ID == "" || req.ProjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("flowObject.IdとprojectIdは必須です")
	}

	object := req.FlowObject
	updated, recipients, err := r.tracker.UpdateObject(ctx, &object, req.ProjectID, clientID, finalize)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   messageType,
		WasSuccessful: true,
		FlowObject:    updated,
	}, recipients), nil, nil
}

func (r *Router) deleteObject(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req objectRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowObject.ID == "" || req.ProjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("flowObject.IdとprojectIdは必須です")
	}

	recipients, err := r.tracker.DeleteObject(ctx, req.FlowObject.ID, req.ProjectID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "DeleteObject",
		WasSuccessful: true,
	}, recipients), nil, nil
}

// --- ビヘイビア操作 ---

func (r *Router) createBehavior(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req behaviorRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.ProjectID == "" || req.FlowBehavior.ObjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("projectIdとflowBehavior.ObjectIdは必須です")
	}

	behavior := req.FlowBehavior
	created, recipients, err := r.tracker.CreateBehavior(ctx, &behavior, req.ProjectID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "CreateBehavior",
		WasSuccessful: true,
		FlowBehavior:  created,
	}, recipients), nil, nil
}

func (r *Router) readBehavior(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req behaviorRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowBehavior.ID == "" {
		return nil, nil, model.NewInvalidPayloadError("flowBehavior.Idは必須です")
	}

	behavior, recipients, err := r.tracker.ReadBehavior(ctx, req.FlowBehavior.ID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "ReadBehavior",
		WasSuccessful: true,
		FlowBehavior:  behavior,
	}, recipients), nil, nil
}

func (r *Router) updateBehavior(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req behaviorRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowBehavior.ID == "" || req.ProjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("flowBehavior.IdとprojectIdは必須です")
	}

	behavior := req.FlowBehavior
	updated, recipients, err := r.tracker.UpdateBehavior(ctx, &behavior, req.ProjectID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "UpdateBehavior",
		WasSuccessful: true,
		FlowBehavior:  updated,
	}, recipients), nil, nil
}

func (r *Router) deleteBehavior(ctx context.Context, clientID string, payload json.RawMessage) (*Envelope, *Envelope, error) {
	var req behaviorRequest
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, nil, err
	}
	if req.FlowBehavior.ID == "" || req.ProjectID == "" {
		return nil, nil, model.NewInvalidPayloadError("flowBehavior.IdとprojectIdは必須です")
	}

	recipients, err := r.tracker.DeleteBehavior(ctx, req.FlowBehavior.ID, req.ProjectID, clientID)
	if err != nil {
		return nil, nil, err
	}
	return NewEnvelope(Content{
		MessageType:   "DeleteBehavior",
		WasSuccessful: true,
	}, recipients), nil, nil
}
