package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"conduzauto/backend/config"
	"conduzauto/backend/internal/dto"
	"conduzauto/backend/internal/model"
	"conduzauto/backend/internal/repository"
	pkgerrors "conduzauto/backend/pkg/errors"
)

// ── 邀请兑换 / 关联业务错误 ──

var (
	ErrInvitationNotFound  = errors.New("邀请不存在")
	ErrInvitationInactive  = errors.New("邀请已撤销")
	ErrInvitationExpired   = errors.New("邀请已过期")
	ErrUsageLimitReached   = errors.New("邀请使用次数已达上限")
	ErrAlreadyRedeemed     = errors.New("该邀请已被当前学员使用")
	ErrAlreadyLinked       = errors.New("学员已与该讲师关联")
	ErrInvitationForbidden = errors.New("无权操作该邀请")
	ErrNotStudent          = errors.New("当前用户不是学员")
	ErrStudentNotFound     = errors.New("学员不存在")
)

// LinkManager 邀请校验、兑换、撤销及讲师学员关联
type LinkManager interface {
	// Inspect 公开校验邀请，无副作用
	Inspect(ctx context.Context, slug, code string) (*dto.InvitationValidateResponse, error)
	// Redeem 学员兑换邀请，成功后加入讲师的学员集合
	Redeem(ctx context.Context, subjectID, slug, code string) (*dto.RedeemResponse, error)
	RevokeInvitation(ctx context.Context, issuerID, code string) (*dto.RevokeResponse, error)
	ListInvitations(ctx context.Context, issuerID string) (*dto.InvitationListResponse, error)

	LinkDirect(ctx context.Context, issuerID, subjectID string) (*dto.LinkResponse, error)
	Unlink(ctx context.Context, issuerID, subjectID string) (*dto.LinkResponse, error)
	ListLinked(ctx context.Context, issuerID string) (*dto.LinkedStudentListResponse, error)
}

type linkManager struct {
	cfg    *config.InviteConfig
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewLinkManager 创建 LinkManager 实例
func NewLinkManager(cfg *config.InviteConfig, repo *repository.Repository, logger *zap.Logger) LinkManager {
	return &linkManager{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// 邀请
// ═══════════════════════════════════════════════════════════

func (s *linkManager) Inspect(ctx context.Context, slug, code string) (*dto.InvitationValidateResponse, error) {
	inv, err := s.repo.Invitation.GetBySlugAndCode(ctx, slug, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		s.logger.Error("查询邀请失败", zap.String("slug", slug), zap.Error(err))
		return nil, err
	}

	switch inv.State(s.now()) {
	case model.InvitationRevoked:
		return nil, ErrInvitationInactive
	case model.InvitationExpired:
		return nil, ErrInvitationExpired
	case model.InvitationExhausted:
		return nil, ErrUsageLimitReached
	}

	issuerName := ""
	if inv.Issuer != nil {
		issuerName = inv.Issuer.Name
	}
	return &dto.InvitationValidateResponse{
		Valid:           true,
		IssuerID:        inv.IssuerID,
		IssuerName:      issuerName,
		ExpiresAt:       dto.FormatTime(inv.ExpiresAt),
		UsagesRemaining: inv.UsagesRemaining(),
	}, nil
}

// Redeem 兑换流程：
//  1. 精确匹配 slug + code，预检撤销 / 过期
//  2. 确认调用方是学员
//  3. 事务内：已关联检查 → 条件占用名额 → 集合插入
//
// 任一步失败整体回滚，不会出现占用了名额却未关联的情况。
func (s *linkManager) Redeem(ctx context.Context, subjectID, slug, code string) (*dto.RedeemResponse, error) {
	inv, err := s.repo.Invitation.GetBySlugAndCode(ctx, slug, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		s.logger.Error("查询邀请失败", zap.String("slug", slug), zap.Error(err))
		return nil, err
	}

	now := s.now()
	if !inv.IsActive {
		return nil, ErrInvitationInactive
	}
	if inv.IsExpired(now) {
		return nil, ErrInvitationExpired
	}

	if _, err := s.repo.Student.GetByID(ctx, subjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotStudent
		}
		s.logger.Error("查询学员失败", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		linked, err := tx.Instructor.IsLinked(ctx, inv.IssuerID, subjectID)
		if err != nil {
			return err
		}
		if linked {
			return ErrAlreadyLinked
		}

		if err := tx.Invitation.TryConsume(ctx, inv.InvitationID, subjectID, now); err != nil {
			return translateConsumeError(err)
		}

		invitationID := inv.InvitationID
		added, err := tx.Instructor.AddStudent(ctx, &model.InstructorStudent{
			InstructorID: inv.IssuerID,
			StudentID:    subjectID,
			Source:       model.LinkSourceInvitation,
			InvitationID: &invitationID,
			LinkedAt:     now,
		})
		if err != nil {
			return err
		}
		if !added {
			// 并发兑换同一讲师的另一条邀请时抢先关联；回滚本次占用
			return ErrAlreadyLinked
		}
		return nil
	})
	if err != nil {
		if isRedeemRejection(err) {
			s.logger.Info("邀请兑换被拒绝",
				zap.String("invitation_id", inv.InvitationID),
				zap.String("subject_id", subjectID),
				zap.String("reason", err.Error()),
			)
			return nil, err
		}
		s.logger.Error("兑换邀请失败",
			zap.String("invitation_id", inv.InvitationID),
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("学员已通过邀请关联讲师",
		zap.String("invitation_id", inv.InvitationID),
		zap.String("issuer_id", inv.IssuerID),
		zap.String("subject_id", subjectID),
	)
	return &dto.RedeemResponse{Linked: true, IssuerID: inv.IssuerID}, nil
}

func translateConsumeError(err error) error {
	switch {
	case errors.Is(err, pkgerrors.ErrInvitationInactive):
		return ErrInvitationInactive
	case errors.Is(err, pkgerrors.ErrInvitationExpired):
		return ErrInvitationExpired
	case errors.Is(err, pkgerrors.ErrUsageLimitReached):
		return ErrUsageLimitReached
	case errors.Is(err, pkgerrors.ErrAlreadyConsumed):
		return ErrAlreadyRedeemed
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrInvitationNotFound
	default:
		return err
	}
}

func isRedeemRejection(err error) bool {
	for _, target := range []error{
		ErrInvitationNotFound, ErrInvitationInactive, ErrInvitationExpired,
		ErrUsageLimitReached, ErrAlreadyRedeemed, ErrAlreadyLinked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RevokeInvitation 仅发起者可撤销；重复撤销幂等
func (s *linkManager) RevokeInvitation(ctx context.Context, issuerID, code string) (*dto.RevokeResponse, error) {
	inv, err := s.repo.Invitation.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		s.logger.Error("查询邀请失败", zap.Error(err))
		return nil, err
	}
	if inv.IssuerID != issuerID {
		return nil, ErrInvitationForbidden
	}

	changed, err := s.repo.Invitation.Revoke(ctx, inv.InvitationID, issuerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		s.logger.Error("撤销邀请失败", zap.String("invitation_id", inv.InvitationID), zap.Error(err))
		return nil, err
	}

	if changed {
		s.logger.Info("邀请已撤销",
			zap.String("invitation_id", inv.InvitationID),
			zap.String("issuer_id", issuerID),
		)
	}
	return &dto.RevokeResponse{Revoked: true, AlreadyRevoked: !changed}, nil
}

func (s *linkManager) ListInvitations(ctx context.Context, issuerID string) (*dto.InvitationListResponse, error) {
	if err := s.requireInstructor(ctx, issuerID); err != nil {
		return nil, err
	}

	invs, err := s.repo.Invitation.ListByIssuer(ctx, issuerID)
	if err != nil {
		s.logger.Error("查询邀请列表失败", zap.String("issuer_id", issuerID), zap.Error(err))
		return nil, err
	}

	now := s.now()
	list := make([]dto.InvitationResponse, 0, len(invs))
	for i := range invs {
		list = append(list, toInvitationResponse(s.cfg, &invs[i], now))
	}
	return &dto.InvitationListResponse{Invitations: list}, nil
}

func toInvitationResponse(cfg *config.InviteConfig, inv *model.Invitation, now time.Time) dto.InvitationResponse {
	consumptions := make([]dto.ConsumptionResponse, 0, len(inv.Consumptions))
	for _, c := range inv.Consumptions {
		consumptions = append(consumptions, dto.ConsumptionResponse{
			SubjectID:  c.SubjectID,
			ConsumedAt: dto.FormatTime(c.ConsumedAt),
		})
	}
	return dto.InvitationResponse{
		ID:              inv.InvitationID,
		Code:            inv.Code,
		Slug:            inv.Slug,
		Link:            cfg.Link(inv.Slug, inv.Code),
		Status:          string(inv.State(now)),
		IsActive:        inv.IsActive,
		CreatedAt:       dto.FormatTime(inv.CreatedAt),
		ExpiresAt:       dto.FormatTime(inv.ExpiresAt),
		UsageCount:      inv.UsageCount,
		MaxUses:         inv.MaxUses,
		UsagesRemaining: inv.UsagesRemaining(),
		Consumptions:    consumptions,
	}
}

// ═══════════════════════════════════════════════════════════
// 讲师 ↔ 学员关联
// ═══════════════════════════════════════════════════════════

func (s *linkManager) LinkDirect(ctx context.Context, issuerID, subjectID string) (*dto.LinkResponse, error) {
	if err := s.requireInstructor(ctx, issuerID); err != nil {
		return nil, err
	}
	if _, err := s.repo.Student.GetByID(ctx, subjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学员失败", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, err
	}

	added, err := s.repo.Instructor.AddStudent(ctx, &model.InstructorStudent{
		InstructorID: issuerID,
		StudentID:    subjectID,
		Source:       model.LinkSourceDirect,
		LinkedAt:     s.now(),
	})
	if err != nil {
		s.logger.Error("关联学员失败",
			zap.String("issuer_id", issuerID),
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return nil, err
	}
	if !added {
		return nil, ErrAlreadyLinked
	}

	s.logger.Info("讲师已直接关联学员", zap.String("issuer_id", issuerID), zap.String("subject_id", subjectID))
	return &dto.LinkResponse{Linked: true}, nil
}

// Unlink 幂等；不回退邀请已占用的次数
func (s *linkManager) Unlink(ctx context.Context, issuerID, subjectID string) (*dto.LinkResponse, error) {
	if err := s.requireInstructor(ctx, issuerID); err != nil {
		return nil, err
	}
	if err := s.repo.Instructor.RemoveStudent(ctx, issuerID, subjectID); err != nil {
		s.logger.Error("解除关联失败",
			zap.String("issuer_id", issuerID),
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return nil, err
	}
	return &dto.LinkResponse{Linked: false}, nil
}

func (s *linkManager) ListLinked(ctx context.Context, issuerID string) (*dto.LinkedStudentListResponse, error) {
	if err := s.requireInstructor(ctx, issuerID); err != nil {
		return nil, err
	}

	links, err := s.repo.Instructor.ListStudents(ctx, issuerID)
	if err != nil {
		s.logger.Error("查询学员列表失败", zap.String("issuer_id", issuerID), zap.Error(err))
		return nil, err
	}

	subjects := make([]dto.LinkedStudentResponse, 0, len(links))
	for _, l := range links {
		item := dto.LinkedStudentResponse{
			SubjectID: l.StudentID,
			Source:    l.Source,
			LinkedAt:  dto.FormatTime(l.LinkedAt),
		}
		if l.Student != nil {
			item.Name = l.Student.Name
			item.Email = l.Student.Email
		}
		subjects = append(subjects, item)
	}
	return &dto.LinkedStudentListResponse{Subjects: subjects}, nil
}

func (s *linkManager) requireInstructor(ctx context.Context, issuerID string) error {
	if _, err := s.repo.Instructor.GetByID(ctx, issuerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotInstructor
		}
		s.logger.Error("查询讲师失败", zap.String("issuer_id", issuerID), zap.Error(err))
		return err
	}
	return nil
}
