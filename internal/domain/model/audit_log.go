package model

import "time"

// 注文ステータス更新、決済の反映など。
type AuditAction string

const (
	//管理者が注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//決済を依頼した操作。
	AuditActionRequestPayment AuditAction = "REQUEST_PAYMENT"
	//決済結果（ポーリング/webhook）を注文に反映した操作。
	AuditActionReconcilePayment AuditAction = "RECONCILE_PAYMENT"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder AuditResourceType = "order"
)

// 決済プロバイダからの操作はActorUserIDを0にする。
const AuditActorProvider int64 = 0

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`

	AfterJSON string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
