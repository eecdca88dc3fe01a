package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"conduzauto/backend/config"
	"conduzauto/backend/internal/dto"
	"conduzauto/backend/internal/model"
	"conduzauto/backend/internal/repository"
	"conduzauto/backend/pkg/slug"
)

// ── 邀请生成业务错误 ──

var (
	ErrNotInstructor      = errors.New("当前用户不是讲师")
	ErrNamespaceExhausted = errors.New("邀请码或 slug 生成重试次数已耗尽")
	ErrInvalidMaxUses     = errors.New("maxUses 必须为正整数")
)

// slugSuffixLen slug 后缀取讲师 ID 末尾字符数
const slugSuffixLen = 6

// CodeIssuer 邀请生成接口
type CodeIssuer interface {
	// Issue 为讲师生成一条新邀请；失败时不写入任何数据
	Issue(ctx context.Context, issuerID string, req *dto.IssueInvitationRequest) (*dto.IssuedInvitationResponse, error)
}

type codeIssuer struct {
	cfg    *config.InviteConfig
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
	random io.Reader
}

// NewCodeIssuer 创建 CodeIssuer 实例
func NewCodeIssuer(cfg *config.InviteConfig, repo *repository.Repository, logger *zap.Logger) CodeIssuer {
	return &codeIssuer{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
		now:    time.Now,
		random: rand.Reader,
	}
}

func (s *codeIssuer) Issue(ctx context.Context, issuerID string, req *dto.IssueInvitationRequest) (*dto.IssuedInvitationResponse, error) {
	instructor, err := s.repo.Instructor.GetByID(ctx, issuerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInstructor
		}
		s.logger.Error("查询讲师失败", zap.String("issuer_id", issuerID), zap.Error(err))
		return nil, err
	}

	// 1. 有效期与次数上限（默认 30 天、不限次数）
	now := s.now()
	ttl := s.cfg.DefaultTTL
	var maxUses *int
	if req != nil {
		if req.ExpiresInDays > 0 {
			ttl = time.Duration(req.ExpiresInDays) * 24 * time.Hour
		}
		if req.MaxUses != nil {
			if *req.MaxUses <= 0 {
				return nil, ErrInvalidMaxUses
			}
			v := *req.MaxUses
			maxUses = &v
		}
	}

	base := instructor.SlugBase
	if base == "" {
		base = slug.Make(instructor.Name)
	}
	base = base + "-" + slug.ShortID(instructor.InstructorID, slugSuffixLen)

	// 2. 生成 + 插入；唯一约束竞争失败时整体重新生成
	for attempt := 0; attempt < s.cfg.MaxCodeAttempts; attempt++ {
		inv, err := s.build(ctx, issuerID, base, now, ttl, maxUses)
		if err != nil {
			return nil, s.logExhausted(issuerID, err)
		}

		err = s.repo.Invitation.Create(ctx, inv)
		if err == nil {
			s.logger.Info("邀请已生成",
				zap.String("invitation_id", inv.InvitationID),
				zap.String("issuer_id", issuerID),
				zap.String("slug", inv.Slug),
			)
			return &dto.IssuedInvitationResponse{
				Code:      inv.Code,
				Slug:      inv.Slug,
				Link:      s.cfg.Link(inv.Slug, inv.Code),
				ExpiresAt: dto.FormatTime(inv.ExpiresAt),
				MaxUses:   inv.MaxUses,
			}, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Error("写入邀请失败", zap.String("issuer_id", issuerID), zap.Error(err))
			return nil, err
		}
		s.logger.Warn("邀请唯一约束冲突，重新生成", zap.String("issuer_id", issuerID), zap.Int("attempt", attempt+1))
	}

	return nil, s.logExhausted(issuerID, ErrNamespaceExhausted)
}

func (s *codeIssuer) build(ctx context.Context, issuerID, base string, now time.Time, ttl time.Duration, maxUses *int) (*model.Invitation, error) {
	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}
	slugValue, err := s.uniqueSlug(ctx, base)
	if err != nil {
		return nil, err
	}

	inv := &model.Invitation{
		InvitationID: uuid.New().String(),
		IssuerID:     issuerID,
		Code:         code,
		Slug:         slugValue,
		ExpiresAt:    now.Add(ttl),
		MaxUses:      maxUses,
		UsageCount:   0,
		IsActive:     true,
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.CreatedBy = &issuerID
	inv.UpdatedBy = &issuerID
	return inv, nil
}

// uniqueCode 生成高熵邀请码，并在写入前确认未被使用过
func (s *codeIssuer) uniqueCode(ctx context.Context) (string, error) {
	buf := make([]byte, s.cfg.CodeBytes)
	for attempt := 0; attempt < s.cfg.MaxCodeAttempts; attempt++ {
		if _, err := io.ReadFull(s.random, buf); err != nil {
			return "", fmt.Errorf("读取随机数失败: %w", err)
		}
		code := hex.EncodeToString(buf)

		exists, err := s.repo.Invitation.ExistsCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrNamespaceExhausted
}

// uniqueSlug base, base-1, base-2, … 直到未被占用
func (s *codeIssuer) uniqueSlug(ctx context.Context, base string) (string, error) {
	for counter := 0; counter < s.cfg.MaxSlugAttempts; counter++ {
		candidate := slug.WithCounter(base, counter)
		exists, err := s.repo.Invitation.ExistsSlug(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrNamespaceExhausted
}

func (s *codeIssuer) logExhausted(issuerID string, err error) error {
	if errors.Is(err, ErrNamespaceExhausted) {
		s.logger.Error("邀请命名空间耗尽，无法生成唯一的 code/slug",
			zap.String("issuer_id", issuerID),
			zap.Int("max_code_attempts", s.cfg.MaxCodeAttempts),
			zap.Int("max_slug_attempts", s.cfg.MaxSlugAttempts),
		)
	} else {
		s.logger.Error("生成邀请失败", zap.String("issuer_id", issuerID), zap.Error(err))
	}
	return err
}
