package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"conduzauto/backend/internal/model"
	pkgerrors "conduzauto/backend/pkg/errors"
)

// InvitationRepository 邀请数据访问接口
type InvitationRepository interface {
	Create(ctx context.Context, inv *model.Invitation) error
	ExistsCode(ctx context.Context, code string) (bool, error)
	ExistsSlug(ctx context.Context, slug string) (bool, error)
	// GetBySlugAndCode 精确匹配 slug + code，无副作用
	GetBySlugAndCode(ctx context.Context, slug, code string) (*model.Invitation, error)
	GetByCode(ctx context.Context, code string) (*model.Invitation, error)
	// ListByIssuer 按创建时间倒序
	ListByIssuer(ctx context.Context, issuerID string) ([]model.Invitation, error)
	// TryConsume 原子地校验并占用一次使用名额，同时追加使用记录
	TryConsume(ctx context.Context, invitationID, subjectID string, now time.Time) error
	// Revoke 撤销邀请；已撤销时 changed=false 且不返回错误
	Revoke(ctx context.Context, invitationID, revokedBy string) (changed bool, err error)
	// RevokeAllByIssuer 撤销讲师全部仍有效的邀请，返回本次撤销条数
	RevokeAllByIssuer(ctx context.Context, issuerID, revokedBy string) (int64, error)
}

type invitationRepo struct {
	db *gorm.DB
}

// NewInvitationRepo 创建 InvitationRepository 实例
func NewInvitationRepo(db *gorm.DB) InvitationRepository {
	return &invitationRepo{db: db}
}

// Create 单条插入；code / slug 唯一冲突返回 gorm.ErrDuplicatedKey
func (r *invitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(inv).Error
}

func (r *invitationRepo) ExistsCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *invitationRepo) ExistsSlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *invitationRepo) GetBySlugAndCode(ctx context.Context, slug, code string) (*model.Invitation, error) {
	var inv model.Invitation
	err := r.db.WithContext(ctx).
		Preload("Issuer").
		Where("slug = ? AND code = ?", slug, code).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) GetByCode(ctx context.Context, code string) (*model.Invitation, error) {
	var inv model.Invitation
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) ListByIssuer(ctx context.Context, issuerID string) ([]model.Invitation, error) {
	var invs []model.Invitation
	err := r.db.WithContext(ctx).
		Preload("Consumptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("consumed_at ASC")
		}).
		Where("issuer_id = ?", issuerID).
		Order("created_at DESC").
		Find(&invs).Error
	if err != nil {
		return nil, err
	}
	return invs, nil
}

// TryConsume 条件更新 + 追加使用记录
//
// UPDATE 的 WHERE 子句同时承担校验：行锁保证并发请求串行，
// 后到的请求在锁释放后重新求值谓词，因此 max_uses=1 只会有一个成功者。
// 两条语句需在同一事务内执行（通过 Repository.Transaction 注入）。
func (r *invitationRepo) TryConsume(ctx context.Context, invitationID, subjectID string, now time.Time) error {
	db := r.db.WithContext(ctx)

	result := db.Model(&model.Invitation{}).
		Where("invitation_id = ?", invitationID).
		Where("is_active = ? AND expires_at >= ?", true, now).
		Where("max_uses IS NULL OR usage_count < max_uses").
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  now,
			"updated_by":  subjectID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.classifyRejection(ctx, invitationID, now)
	}

	consumption := model.InvitationConsumption{
		InvitationID: invitationID,
		SubjectID:    subjectID,
		ConsumedAt:   now,
	}
	inserted := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&consumption)
	if inserted.Error != nil {
		return inserted.Error
	}
	if inserted.RowsAffected == 0 {
		return pkgerrors.ErrAlreadyConsumed
	}
	return nil
}

// classifyRejection 条件更新未命中时，读取当前行判断具体原因
func (r *invitationRepo) classifyRejection(ctx context.Context, invitationID string, now time.Time) error {
	var inv model.Invitation
	if err := r.db.WithContext(ctx).Where("invitation_id = ?", invitationID).First(&inv).Error; err != nil {
		return err
	}
	switch inv.State(now) {
	case model.InvitationRevoked:
		return pkgerrors.ErrInvitationInactive
	case model.InvitationExpired:
		return pkgerrors.ErrInvitationExpired
	case model.InvitationExhausted:
		return pkgerrors.ErrUsageLimitReached
	default:
		return errors.New("邀请状态未知，条件更新未生效")
	}
}

func (r *invitationRepo) Revoke(ctx context.Context, invitationID, revokedBy string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("invitation_id = ? AND is_active = ?", invitationID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
			"updated_by": revokedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	// 未命中：区分“已撤销”与“不存在”
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Invitation{}).
		Where("invitation_id = ?", invitationID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, gorm.ErrRecordNotFound
	}
	return false, nil
}

func (r *invitationRepo) RevokeAllByIssuer(ctx context.Context, issuerID, revokedBy string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("issuer_id = ? AND is_active = ?", issuerID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
			"updated_by": revokedBy,
		})
	return result.RowsAffected, result.Error
}
