package dto

// ── 关联模块 DTO ──

// LinkResponse 关联 / 解除关联结果
type LinkResponse struct {
	Linked bool `json:"linked"`
}

// LinkedStudentResponse 已关联学员
type LinkedStudentResponse struct {
	SubjectID string `json:"subjectId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Source    string `json:"source"`
	LinkedAt  string `json:"linkedAt"`
}

// LinkedStudentListResponse 已关联学员列表
type LinkedStudentListResponse struct {
	Subjects []LinkedStudentResponse `json:"subjects"`
}
