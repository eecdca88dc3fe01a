package model

import "time"

// InvitationState 邀请在读取时刻推导出的状态（不落库）
type InvitationState string

const (
	InvitationActive    InvitationState = "active"
	InvitationRevoked   InvitationState = "revoked"
	InvitationExpired   InvitationState = "expired"
	InvitationExhausted InvitationState = "exhausted"
)

// Invitation 邀请表，对应 invitations
// 创建后 IssuerID / Code / Slug 不可变；只通过撤销与使用两种方式变更
type Invitation struct {
	InvitationID string    `gorm:"type:uuid;primaryKey"          json:"id"`
	IssuerID     string    `gorm:"type:uuid;not null"            json:"issuer_id"`
	Code         string    `gorm:"type:varchar(64);not null"     json:"code"`
	Slug         string    `gorm:"type:varchar(160);not null"    json:"slug"`
	ExpiresAt    time.Time `gorm:"not null"                      json:"expires_at"`
	MaxUses      *int      `json:"max_uses"` // nil 表示不限次数
	UsageCount   int       `gorm:"not null;default:0"            json:"usage_count"`
	IsActive     bool      `gorm:"not null;default:true"         json:"is_active"`
	BaseModel

	// 关联
	Issuer       *Instructor             `gorm:"foreignKey:IssuerID;references:InstructorID"     json:"issuer,omitempty"`
	Consumptions []InvitationConsumption `gorm:"foreignKey:InvitationID;references:InvitationID" json:"consumptions,omitempty"`
}

// TableName 指定表名
func (Invitation) TableName() string { return "invitations" }

// IsExpired 过期在读取时计算，不是存储的状态迁移
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsExhausted 设置了上限且已用满
func (i *Invitation) IsExhausted() bool {
	return i.MaxUses != nil && i.UsageCount >= *i.MaxUses
}

// UsagesRemaining 剩余可用次数，不限次数时返回 nil
func (i *Invitation) UsagesRemaining() *int {
	if i.MaxUses == nil {
		return nil
	}
	remaining := *i.MaxUses - i.UsageCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// State 按 撤销 > 过期 > 用尽 的优先级推导当前状态
func (i *Invitation) State(now time.Time) InvitationState {
	switch {
	case !i.IsActive:
		return InvitationRevoked
	case i.IsExpired(now):
		return InvitationExpired
	case i.IsExhausted():
		return InvitationExhausted
	default:
		return InvitationActive
	}
}

// InvitationConsumption 邀请使用记录，对应 invitation_consumptions（仅追加）
type InvitationConsumption struct {
	ConsumptionID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	InvitationID  string    `gorm:"type:uuid;not null"                             json:"invitation_id"`
	SubjectID     string    `gorm:"type:uuid;not null"                             json:"subject_id"`
	ConsumedAt    time.Time `gorm:"not null"                                       json:"consumed_at"`
}

// TableName 指定表名
func (InvitationConsumption) TableName() string { return "invitation_consumptions" }
