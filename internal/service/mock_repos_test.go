package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"conduzauto/backend/config"
	"conduzauto/backend/internal/model"
	"conduzauto/backend/internal/repository"
	pkgerrors "conduzauto/backend/pkg/errors"
)

// ── Mock InvitationRepository ──
// 行为与 PostgreSQL 实现保持一致：唯一约束、条件占用、幂等撤销

type mockInvitationRepo struct {
	mu           sync.Mutex
	invitations  map[string]*model.Invitation // key: invitation_id
	consumptions map[string][]model.InvitationConsumption
	instructors  *mockInstructorRepo

	failCreates int // 前 N 次 Create 模拟唯一约束竞争失败
	creates     int
}

func newMockInvitationRepo(instructors *mockInstructorRepo) *mockInvitationRepo {
	return &mockInvitationRepo{
		invitations:  make(map[string]*model.Invitation),
		consumptions: make(map[string][]model.InvitationConsumption),
		instructors:  instructors,
	}
}

func (m *mockInvitationRepo) Create(_ context.Context, inv *model.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.failCreates > 0 {
		m.failCreates--
		return gorm.ErrDuplicatedKey
	}
	for _, existing := range m.invitations {
		if existing.Code == inv.Code || existing.Slug == inv.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	if inv.InvitationID == "" {
		inv.InvitationID = uuid.New().String()
	}
	cp := *inv
	m.invitations[inv.InvitationID] = &cp
	return nil
}

func (m *mockInvitationRepo) ExistsCode(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInvitationRepo) ExistsSlug(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInvitationRepo) GetBySlugAndCode(ctx context.Context, slug, code string) (*model.Invitation, error) {
	m.mu.Lock()
	var found *model.Invitation
	for _, inv := range m.invitations {
		if inv.Slug == slug && inv.Code == code {
			cp := *inv
			found = &cp
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if m.instructors != nil {
		if issuer, err := m.instructors.GetByID(ctx, found.IssuerID); err == nil {
			found.Issuer = issuer
		}
	}
	return found, nil
}

func (m *mockInvitationRepo) GetByCode(_ context.Context, code string) (*model.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.Code == code {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInvitationRepo) ListByIssuer(_ context.Context, issuerID string) ([]model.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []model.Invitation
	for _, inv := range m.invitations {
		if inv.IssuerID != issuerID {
			continue
		}
		cp := *inv
		cp.Consumptions = append([]model.InvitationConsumption(nil), m.consumptions[inv.InvitationID]...)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockInvitationRepo) TryConsume(_ context.Context, invitationID, subjectID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[invitationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	switch inv.State(now) {
	case model.InvitationRevoked:
		return pkgerrors.ErrInvitationInactive
	case model.InvitationExpired:
		return pkgerrors.ErrInvitationExpired
	case model.InvitationExhausted:
		return pkgerrors.ErrUsageLimitReached
	}
	for _, c := range m.consumptions[invitationID] {
		if c.SubjectID == subjectID {
			return pkgerrors.ErrAlreadyConsumed
		}
	}

	inv.UsageCount++
	m.consumptions[invitationID] = append(m.consumptions[invitationID], model.InvitationConsumption{
		ConsumptionID: uuid.New().String(),
		InvitationID:  invitationID,
		SubjectID:     subjectID,
		ConsumedAt:    now,
	})
	return nil
}

func (m *mockInvitationRepo) Revoke(_ context.Context, invitationID, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[invitationID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if !inv.IsActive {
		return false, nil
	}
	inv.IsActive = false
	return true, nil
}

func (m *mockInvitationRepo) RevokeAllByIssuer(_ context.Context, issuerID, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, inv := range m.invitations {
		if inv.IssuerID == issuerID && inv.IsActive {
			inv.IsActive = false
			n++
		}
	}
	return n, nil
}

// snapshot 复制当前状态，返回的函数将其恢复（模拟事务回滚）
func (m *mockInvitationRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	invitations := make(map[string]*model.Invitation, len(m.invitations))
	for id, inv := range m.invitations {
		cp := *inv
		invitations[id] = &cp
	}
	consumptions := make(map[string][]model.InvitationConsumption, len(m.consumptions))
	for id, list := range m.consumptions {
		consumptions[id] = append([]model.InvitationConsumption(nil), list...)
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.invitations = invitations
		m.consumptions = consumptions
	}
}

func (m *mockInvitationRepo) consumptionCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.consumptions[id])
}

// get 测试断言用，返回内部状态快照
func (m *mockInvitationRepo) get(id string) model.Invitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.invitations[id]
}

func (m *mockInvitationRepo) seed(inv *model.Invitation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invitations[inv.InvitationID] = &cp
}

// ── Mock InstructorRepository ──

type linkKey struct {
	instructorID string
	studentID    string
}

type mockInstructorRepo struct {
	mu          sync.Mutex
	instructors map[string]*model.Instructor
	links       map[linkKey]model.InstructorStudent
	students    *mockStudentRepo
}

func newMockInstructorRepo(students *mockStudentRepo) *mockInstructorRepo {
	return &mockInstructorRepo{
		instructors: make(map[string]*model.Instructor),
		links:       make(map[linkKey]model.InstructorStudent),
		students:    students,
	}
}

func (m *mockInstructorRepo) Create(_ context.Context, instructor *model.Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.instructors {
		if existing.Email == instructor.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if instructor.InstructorID == "" {
		instructor.InstructorID = uuid.New().String()
	}
	cp := *instructor
	m.instructors[instructor.InstructorID] = &cp
	return nil
}

func (m *mockInstructorRepo) GetByID(_ context.Context, id string) (*model.Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ins, ok := m.instructors[id]; ok {
		cp := *ins
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInstructorRepo) GetByEmail(_ context.Context, email string) (*model.Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ins := range m.instructors {
		if ins.Email == email {
			cp := *ins
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInstructorRepo) AddStudent(_ context.Context, link *model.InstructorStudent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkKey{link.InstructorID, link.StudentID}
	if _, ok := m.links[key]; ok {
		return false, nil
	}
	m.links[key] = *link
	return true, nil
}

func (m *mockInstructorRepo) RemoveStudent(_ context.Context, instructorID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, linkKey{instructorID, studentID})
	return nil
}

func (m *mockInstructorRepo) IsLinked(_ context.Context, instructorID, studentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[linkKey{instructorID, studentID}]
	return ok, nil
}

func (m *mockInstructorRepo) ListStudents(ctx context.Context, instructorID string) ([]model.InstructorStudent, error) {
	m.mu.Lock()
	var result []model.InstructorStudent
	for key, l := range m.links {
		if key.instructorID == instructorID {
			result = append(result, l)
		}
	}
	m.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].LinkedAt.After(result[j].LinkedAt)
	})
	if m.students != nil {
		for i := range result {
			if st, err := m.students.GetByID(ctx, result[i].StudentID); err == nil {
				result[i].Student = st
			}
		}
	}
	return result, nil
}

func (m *mockInstructorRepo) RemoveAllStudents(_ context.Context, instructorID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key := range m.links {
		if key.instructorID == instructorID {
			delete(m.links, key)
			n++
		}
	}
	return n, nil
}

func (m *mockInstructorRepo) RemoveStudentEverywhere(_ context.Context, studentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key := range m.links {
		if key.studentID == studentID {
			delete(m.links, key)
			n++
		}
	}
	return n, nil
}

func (m *mockInstructorRepo) Delete(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instructors[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.instructors, id)
	return nil
}

func (m *mockInstructorRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	instructors := make(map[string]*model.Instructor, len(m.instructors))
	for id, ins := range m.instructors {
		cp := *ins
		instructors[id] = &cp
	}
	links := make(map[linkKey]model.InstructorStudent, len(m.links))
	for key, l := range m.links {
		links[key] = l
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.instructors = instructors
		m.links = links
	}
}

func (m *mockInstructorRepo) linkCount(instructorID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.links {
		if key.instructorID == instructorID {
			n++
		}
	}
	return n
}

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	mu       sync.Mutex
	students map[string]*model.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) Create(_ context.Context, student *model.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.Email == student.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if student.StudentID == "" {
		student.StudentID = uuid.New().String()
	}
	cp := *student
	m.students[student.StudentID] = &cp
	return nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.students[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetByEmail(_ context.Context, email string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.students {
		if st.Email == email {
			cp := *st
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) Delete(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	students := make(map[string]*model.Student, len(m.students))
	for id, st := range m.students {
		cp := *st
		students[id] = &cp
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.students = students
	}
}

// ── 测试辅助 ──

// mockStore 事务串行执行，fn 返回错误时恢复进入事务前的全部状态
type mockStore struct {
	txMu        sync.Mutex
	repo        *repository.Repository
	invitations *mockInvitationRepo
	instructors *mockInstructorRepo
	students    *mockStudentRepo
}

func newMockStore() *mockStore {
	students := newMockStudentRepo()
	instructors := newMockInstructorRepo(students)
	invitations := newMockInvitationRepo(instructors)
	store := &mockStore{
		invitations: invitations,
		instructors: instructors,
		students:    students,
	}
	store.repo = store.repoWith(instructors)
	return store
}

// repoWith 用指定的讲师仓库组装聚合，共享同一份状态与事务锁
func (s *mockStore) repoWith(instructors repository.InstructorRepository) *repository.Repository {
	var repo *repository.Repository
	repo = repository.NewRepositoryWith(s.invitations, instructors, s.students,
		func(_ context.Context, fn func(*repository.Repository) error) error {
			return s.transaction(repo, fn)
		})
	return repo
}

func (s *mockStore) transaction(repo *repository.Repository, fn func(*repository.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	restores := []func(){s.invitations.snapshot(), s.instructors.snapshot(), s.students.snapshot()}
	if err := fn(repo); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func (s *mockStore) addInstructor(id, name string) *model.Instructor {
	ins := &model.Instructor{
		InstructorID: id,
		Name:         name,
		Email:        id + "@example.com",
	}
	_ = s.instructors.Create(context.Background(), ins)
	return ins
}

func (s *mockStore) addStudent(id, name string) *model.Student {
	st := &model.Student{
		StudentID: id,
		Name:      name,
		Email:     id + "@example.com",
	}
	_ = s.students.Create(context.Background(), st)
	return st
}

func testInviteConfig() *config.InviteConfig {
	return &config.InviteConfig{
		LinkBaseURL:     "http://localhost:3000",
		LinkPath:        "/join-instructor",
		DefaultTTL:      720 * time.Hour,
		CodeBytes:       16,
		MaxCodeAttempts: 5,
		MaxSlugAttempts: 100,
	}
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
