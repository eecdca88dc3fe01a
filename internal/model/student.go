package model

// Student 学员表，对应 students
type Student struct {
	StudentID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	Name         string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email        string `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	SoftDeleteModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }
