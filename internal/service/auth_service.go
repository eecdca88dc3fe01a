package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"conduzauto/backend/internal/dto"
	"conduzauto/backend/internal/model"
	"conduzauto/backend/internal/repository"
	"conduzauto/backend/pkg/jwt"
	"conduzauto/backend/pkg/redis"
	"conduzauto/backend/pkg/slug"
)

var (
	ErrInvalidCredentials    = errors.New("邮箱或密码错误")
	ErrEmailTaken            = errors.New("邮箱已被注册")
	ErrRevocationUnavailable = errors.New("Token 注销服务不可用")
)

// 主体角色（仅用于响应展示，Token 中不携带）
const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// AuthService 认证业务接口
type AuthService interface {
	RegisterInstructor(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	LoginInstructor(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RegisterStudent(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	LoginStudent(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	// Logout 将当前 Token 加入注销名单直至其自然过期
	Logout(ctx context.Context, identity *jwt.Identity) error
	// DeleteInstructor 注销讲师账号：撤销其全部邀请并清空学员集合
	DeleteInstructor(ctx context.Context, identity *jwt.Identity) error
	// DeleteStudent 注销学员账号：移出所有讲师的学员集合
	DeleteStudent(ctx context.Context, identity *jwt.Identity) error
}

type authService struct {
	repo     *repository.Repository
	jwtMgr   *jwt.Manager
	rdb      *redis.Client // 可为 nil
	logger   *zap.Logger
	hashCost int
	now      func() time.Time
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:     repo,
		jwtMgr:   jwtMgr,
		rdb:      rdb,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ── 讲师 ──

func (s *authService) RegisterInstructor(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	email := normalizeEmail(req.Email)

	if _, err := s.repo.Instructor.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询讲师失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	instructor := &model.Instructor{
		InstructorID: uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		SlugBase:     slug.Make(req.Name),
		Bio:          req.Bio,
	}
	if err := s.repo.Instructor.Create(ctx, instructor); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("创建讲师失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("讲师注册成功", zap.String("instructor_id", instructor.InstructorID))
	return s.issueToken(instructor.InstructorID, instructor.Name, instructor.Email, RoleInstructor)
}

func (s *authService) LoginInstructor(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	instructor, err := s.repo.Instructor.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询讲师失败", zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(instructor.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(instructor.InstructorID, instructor.Name, instructor.Email, RoleInstructor)
}

// ── 学员 ──

func (s *authService) RegisterStudent(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	email := normalizeEmail(req.Email)

	if _, err := s.repo.Student.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学员失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	student := &model.Student{
		StudentID:    uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.repo.Student.Create(ctx, student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("创建学员失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("学员注册成功", zap.String("student_id", student.StudentID))
	return s.issueToken(student.StudentID, student.Name, student.Email, RoleStudent)
}

func (s *authService) LoginStudent(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	student, err := s.repo.Student.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询学员失败", zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(student.StudentID, student.Name, student.Email, RoleStudent)
}

// ── 登出 ──

func (s *authService) Logout(ctx context.Context, identity *jwt.Identity) error {
	if s.rdb == nil {
		s.logger.Warn("Redis 未配置，无法注销 Token", zap.String("subject_id", identity.SubjectID))
		return ErrRevocationUnavailable
	}

	ttl := identity.ExpiresAt.Sub(s.now())
	if err := s.rdb.BlacklistToken(ctx, identity.TokenID, ttl); err != nil {
		s.logger.Error("写入 Token 注销名单失败", zap.String("subject_id", identity.SubjectID), zap.Error(err))
		return ErrRevocationUnavailable
	}
	return nil
}

// ── 注销账号 ──
// 账号行软删除保留，邀请与使用记录仍可追溯；删除后按 ID / 邮箱均查不到

func (s *authService) DeleteInstructor(ctx context.Context, identity *jwt.Identity) error {
	instructorID := identity.SubjectID
	var revoked, unlinked int64

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Instructor.GetByID(ctx, instructorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotInstructor
			}
			return err
		}

		var err error
		if revoked, err = tx.Invitation.RevokeAllByIssuer(ctx, instructorID, instructorID); err != nil {
			return err
		}
		if unlinked, err = tx.Instructor.RemoveAllStudents(ctx, instructorID); err != nil {
			return err
		}
		return tx.Instructor.Delete(ctx, instructorID, instructorID)
	})
	if err != nil {
		if errors.Is(err, ErrNotInstructor) {
			return err
		}
		s.logger.Error("注销讲师账号失败", zap.String("instructor_id", instructorID), zap.Error(err))
		return err
	}

	s.logger.Info("讲师账号已注销",
		zap.String("instructor_id", instructorID),
		zap.Int64("revoked_invitations", revoked),
		zap.Int64("removed_links", unlinked),
	)
	s.revokeAfterDelete(ctx, identity)
	return nil
}

func (s *authService) DeleteStudent(ctx context.Context, identity *jwt.Identity) error {
	studentID := identity.SubjectID
	var unlinked int64

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Student.GetByID(ctx, studentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotStudent
			}
			return err
		}

		var err error
		if unlinked, err = tx.Instructor.RemoveStudentEverywhere(ctx, studentID); err != nil {
			return err
		}
		return tx.Student.Delete(ctx, studentID, studentID)
	})
	if err != nil {
		if errors.Is(err, ErrNotStudent) {
			return err
		}
		s.logger.Error("注销学员账号失败", zap.String("student_id", studentID), zap.Error(err))
		return err
	}

	s.logger.Info("学员账号已注销", zap.String("student_id", studentID), zap.Int64("removed_links", unlinked))
	s.revokeAfterDelete(ctx, identity)
	return nil
}

// revokeAfterDelete 账号已不存在，后续角色查询都会失败；注销名单写入失败只记录告警
func (s *authService) revokeAfterDelete(ctx context.Context, identity *jwt.Identity) {
	if err := s.Logout(ctx, identity); err != nil {
		s.logger.Warn("账号已注销但 Token 未能加入注销名单", zap.String("subject_id", identity.SubjectID), zap.Error(err))
	}
}

func (s *authService) issueToken(subjectID, name, email, role string) (*dto.TokenResponse, error) {
	token, expiresAt, err := s.jwtMgr.GenerateToken(subjectID)
	if err != nil {
		s.logger.Error("生成 Token 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		ExpiresAt:   dto.FormatTime(expiresAt),
		Subject: dto.SubjectResponse{
			ID:    subjectID,
			Name:  name,
			Email: email,
			Role:  role,
		},
	}, nil
}
