// Package model はドメインモデルを定義する。
package model

import "time"

// Participant はチャットルームに在室中の参加者を表す。
// レコードが存在すること自体が在室を意味し、退室時はレコードごと削除される。
type Participant struct {
	Name       string
	LastStatus time.Time // 最後に入室またはステータス更新を受け付けた時刻
}
