package model

import "time"

// Instructor 讲师表，对应 instructors
type Instructor struct {
	InstructorID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"instructor_id"`
	Name         string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email        string `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	SlugBase     string `gorm:"type:varchar(60);not null"                      json:"slug_base"` // 由姓名派生
	Bio          string `gorm:"type:text;not null;default:''"                  json:"bio"`
	SoftDeleteModel
}

// TableName 指定表名
func (Instructor) TableName() string { return "instructors" }

// 关联来源
const (
	LinkSourceInvitation = "invitation"
	LinkSourceDirect     = "direct"
)

// InstructorStudent 讲师 ↔ 学员关联，对应 instructor_students
// 主键 (instructor_id, student_id) 保证集合语义
type InstructorStudent struct {
	InstructorID string    `gorm:"type:uuid;primaryKey"      json:"instructor_id"`
	StudentID    string    `gorm:"type:uuid;primaryKey"      json:"student_id"`
	Source       string    `gorm:"type:varchar(20);not null" json:"source"`
	InvitationID *string   `gorm:"type:uuid"                 json:"invitation_id,omitempty"`
	LinkedAt     time.Time `gorm:"not null"                  json:"linked_at"`

	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (InstructorStudent) TableName() string { return "instructor_students" }
