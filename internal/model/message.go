package model

import "time"

// BroadcastTarget は全員宛てメッセージの宛先を表す。
const BroadcastTarget = "Todos"

// 入退室時に送られるステータスメッセージの本文。
const (
	JoinNoticeText  = "entra na sala..."
	LeaveNoticeText = "sai da sala..."
)

// MessageTimeLayout はMessage.Timeの表示形式（HH:MM:SS）。
const MessageTimeLayout = "15:04:05"

// MessageType はメッセージの種別を表す。
type MessageType string

const (
	// MessageTypePublic は全員に公開される通常メッセージ。
	MessageTypePublic MessageType = "message"
	// MessageTypePrivate は宛先と送信者にのみ見えるメッセージ。
	MessageTypePrivate MessageType = "private_message"
	// MessageTypeStatus は入退室時にシステムが生成するメッセージ。
	MessageTypeStatus MessageType = "status"
)

// IsSendable はクライアントから送信可能な種別であればtrueを返す。
// statusはシステム専用のため含まない。
func (t MessageType) IsSendable() bool {
	return t == MessageTypePublic || t == MessageTypePrivate
}

// Message はチャットログの1エントリを表す。
// 追記専用であり、一度書き込まれたメッセージは変更されない。
type Message struct {
	ID        int64 // ログ上の位置。並び順はこの値のみで決まる
	From      string
	To        string
	Text      string
	Type      MessageType
	Time      string    // 作成時刻の表示用文字列（HH:MM:SS）
	CreatedAt time.Time // 保持期間ジョブ用の作成時刻
}

// NewStatusMessage は入退室を通知するステータスメッセージを生成する。
func NewStatusMessage(name, text string, at time.Time) *Message {
	return &Message{
		From:      name,
		To:        BroadcastTarget,
		Text:      text,
		Type:      MessageTypeStatus,
		Time:      at.Format(MessageTimeLayout),
		CreatedAt: at,
	}
}

// NewJoinMessage は入室通知メッセージを生成する。
func NewJoinMessage(name string, at time.Time) *Message {
	return NewStatusMessage(name, JoinNoticeText, at)
}

// NewLeaveMessage は退室通知メッセージを生成する。
func NewLeaveMessage(name string, at time.Time) *Message {
	return NewStatusMessage(name, LeaveNoticeText, at)
}
