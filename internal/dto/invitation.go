package dto

// ── 邀请模块 DTO ──

// IssueInvitationRequest 生成邀请请求（请求体可省略，省略时使用默认策略）
type IssueInvitationRequest struct {
	MaxUses       *int `json:"maxUses"       binding:"omitempty,min=1"`
	ExpiresInDays int  `json:"expiresInDays" binding:"omitempty,min=1,max=365"`
}

// IssuedInvitationResponse 生成邀请响应
type IssuedInvitationResponse struct {
	Code      string `json:"code"`
	Slug      string `json:"slug"`
	Link      string `json:"link"`
	ExpiresAt string `json:"expiresAt"`
	MaxUses   *int   `json:"maxUses"`
}

// InvitationValidateResponse 公开校验邀请响应
type InvitationValidateResponse struct {
	Valid           bool   `json:"valid"`
	IssuerID        string `json:"issuerId"`
	IssuerName      string `json:"issuerName"`
	ExpiresAt       string `json:"expiresAt"`
	UsagesRemaining *int   `json:"usagesRemaining"` // null 表示不限次数
}

// ConsumptionResponse 邀请使用记录
type ConsumptionResponse struct {
	SubjectID  string `json:"subjectId"`
	ConsumedAt string `json:"consumedAt"`
}

// InvitationResponse 讲师查看自己的邀请
type InvitationResponse struct {
	ID              string                `json:"id"`
	Code            string                `json:"code"`
	Slug            string                `json:"slug"`
	Link            string                `json:"link"`
	Status          string                `json:"status"`
	IsActive        bool                  `json:"isActive"`
	CreatedAt       string                `json:"createdAt"`
	ExpiresAt       string                `json:"expiresAt"`
	UsageCount      int                   `json:"usageCount"`
	MaxUses         *int                  `json:"maxUses"`
	UsagesRemaining *int                  `json:"usagesRemaining"`
	Consumptions    []ConsumptionResponse `json:"consumptions"`
}

// InvitationListResponse 邀请列表
type InvitationListResponse struct {
	Invitations []InvitationResponse `json:"invitations"`
}

// RedeemResponse 兑换邀请结果
type RedeemResponse struct {
	Linked   bool   `json:"linked"`
	IssuerID string `json:"issuerId"`
}

// RevokeResponse 撤销邀请结果；重复撤销时 AlreadyRevoked=true
type RevokeResponse struct {
	Revoked        bool `json:"revoked"`
	AlreadyRevoked bool `json:"alreadyRevoked"`
}
