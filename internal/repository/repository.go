package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNoTransaction 聚合既未绑定数据库连接也未提供事务实现
var ErrNoTransaction = errors.New("repository: 未绑定数据库连接，无法开启事务")

// TxFunc 在同一事务中执行 fn；fn 返回错误时必须撤销其全部写入
type TxFunc func(ctx context.Context, fn func(txRepo *Repository) error) error

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db     *gorm.DB
	txFunc TxFunc

	Invitation InvitationRepository
	Instructor InstructorRepository
	Student    StudentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		Invitation: NewInvitationRepo(db),
		Instructor: NewInstructorRepo(db),
		Student:    NewStudentRepo(db),
	}
}

// NewRepositoryWith 使用给定实现组装聚合，事务语义由 tx 提供
func NewRepositoryWith(inv InvitationRepository, ins InstructorRepository, stu StudentRepository, tx TxFunc) *Repository {
	if tx == nil {
		panic("repository: NewRepositoryWith 必须提供事务实现")
	}
	return &Repository{
		txFunc:     tx,
		Invitation: inv,
		Instructor: ins,
		Student:    stu,
	}
}

// WithTx 返回绑定到事务连接的聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{
		db:         tx,
		Invitation: NewInvitationRepo(tx),
		Instructor: NewInstructorRepo(tx),
		Student:    NewStudentRepo(tx),
	}
}

// Transaction 在单个事务中执行 fn，fn 返回错误时整体回滚
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.txFunc != nil {
		return r.txFunc(ctx, fn)
	}
	if r.db == nil {
		return ErrNoTransaction
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
