package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"conduzauto/backend/internal/model"
)

// InstructorRepository 讲师及其学员关联集合的数据访问接口
type InstructorRepository interface {
	Create(ctx context.Context, instructor *model.Instructor) error
	GetByID(ctx context.Context, id string) (*model.Instructor, error)
	GetByEmail(ctx context.Context, email string) (*model.Instructor, error)
	// AddStudent 集合插入，added 表示本次是否新加入
	AddStudent(ctx context.Context, link *model.InstructorStudent) (added bool, err error)
	// RemoveStudent 幂等删除
	RemoveStudent(ctx context.Context, instructorID, studentID string) error
	IsLinked(ctx context.Context, instructorID, studentID string) (bool, error)
	ListStudents(ctx context.Context, instructorID string) ([]model.InstructorStudent, error)
	// RemoveAllStudents 清空讲师的学员集合（讲师注销）
	RemoveAllStudents(ctx context.Context, instructorID string) (int64, error)
	// RemoveStudentEverywhere 将学员移出所有讲师的集合（学员注销）
	RemoveStudentEverywhere(ctx context.Context, studentID string) (int64, error)
	// Delete 软删除；不存在或已注销时返回 gorm.ErrRecordNotFound
	Delete(ctx context.Context, id, deletedBy string) error
}

type instructorRepo struct {
	db *gorm.DB
}

// NewInstructorRepo 创建 InstructorRepository 实例
func NewInstructorRepo(db *gorm.DB) InstructorRepository {
	return &instructorRepo{db: db}
}

func (r *instructorRepo) Create(ctx context.Context, instructor *model.Instructor) error {
	return r.db.WithContext(ctx).Create(instructor).Error
}

func (r *instructorRepo) GetByID(ctx context.Context, id string) (*model.Instructor, error) {
	var instructor model.Instructor
	err := r.db.WithContext(ctx).
		Where("instructor_id = ?", id).
		First(&instructor).Error
	if err != nil {
		return nil, err
	}
	return &instructor, nil
}

func (r *instructorRepo) GetByEmail(ctx context.Context, email string) (*model.Instructor, error) {
	var instructor model.Instructor
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&instructor).Error
	if err != nil {
		return nil, err
	}
	return &instructor, nil
}

// AddStudent INSERT ... ON CONFLICT DO NOTHING，以受影响行数判断是否新加入
// 并发的同一主体只会有一个请求得到 added=true
func (r *instructorRepo) AddStudent(ctx context.Context, link *model.InstructorStudent) (bool, error) {
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now()
	}
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *instructorRepo) RemoveStudent(ctx context.Context, instructorID, studentID string) error {
	return r.db.WithContext(ctx).
		Where("instructor_id = ? AND student_id = ?", instructorID, studentID).
		Delete(&model.InstructorStudent{}).Error
}

func (r *instructorRepo) IsLinked(ctx context.Context, instructorID, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.InstructorStudent{}).
		Where("instructor_id = ? AND student_id = ?", instructorID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *instructorRepo) ListStudents(ctx context.Context, instructorID string) ([]model.InstructorStudent, error) {
	var links []model.InstructorStudent
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("instructor_id = ?", instructorID).
		Order("linked_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *instructorRepo) RemoveAllStudents(ctx context.Context, instructorID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("instructor_id = ?", instructorID).
		Delete(&model.InstructorStudent{})
	return result.RowsAffected, result.Error
}

func (r *instructorRepo) RemoveStudentEverywhere(ctx context.Context, studentID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Delete(&model.InstructorStudent{})
	return result.RowsAffected, result.Error
}

func (r *instructorRepo) Delete(ctx context.Context, id, deletedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Instructor{}).
		Where("instructor_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
