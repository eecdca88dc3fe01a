package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"conduzauto/backend/internal/model"
)

func setupTestExportService() (*exportService, *mockStore) {
	store := newMockStore()
	_ = store.instructors.Create(context.Background(), &model.Instructor{
		InstructorID: testIssuerID,
		Name:         "Ana Souza",
		Email:        "ana@example.com",
		SlugBase:     "ana-souza",
	})

	svc := NewExportService(testInviteConfig(), store.repo, zap.NewNop()).(*exportService)
	svc.now = fixedClock
	return svc, store
}

func seedExportInvitations(store *mockStore) {
	seedInvitation(store, func(inv *model.Invitation) {
		inv.MaxUses = intPtr(2)
		inv.UsageCount = 1
	})
	store.invitations.consumptions["inv-1"] = []model.InvitationConsumption{
		{InvitationID: "inv-1", SubjectID: "s1", ConsumedAt: fixedNow.Add(-30 * time.Minute)},
	}
	seedInvitation(store, func(inv *model.Invitation) {
		inv.InvitationID = "inv-2"
		inv.Code = "feedface"
		inv.Slug = "ana-souza-1b2c3d-1"
		inv.IsActive = false
		inv.CreatedAt = fixedNow
	})
}

// ── ExportInvitations ──

func TestExportService_ExportInvitations_NoInvitations(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportInvitations(context.Background(), testIssuerID)
	if !errors.Is(err, ErrExportNoInvitations) {
		t.Errorf("期望 ErrExportNoInvitations，实际: %v", err)
	}
}

func TestExportService_ExportInvitations_NotInstructor(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportInvitations(context.Background(), "desconhecido")
	if !errors.Is(err, ErrNotInstructor) {
		t.Errorf("期望 ErrNotInstructor，实际: %v", err)
	}
}

func TestExportService_ExportInvitations_Success(t *testing.T) {
	svc, store := setupTestExportService()
	seedExportInvitations(store)

	buf, filename, err := svc.ExportInvitations(context.Background(), testIssuerID)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if filename != "邀请_ana-souza_20260301.xlsx" {
		t.Errorf("文件名不符: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("无法解析导出的 Excel: %v", err)
	}
	defer f.Close()

	header, _ := f.GetCellValue("邀请", "A1")
	if header != "邀请码" {
		t.Errorf("表头不符: %q", header)
	}
	rows, err := f.GetRows("邀请")
	if err != nil {
		t.Fatalf("读取 Sheet 失败: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("期望 1 行表头 + 2 行数据，实际 %d", len(rows))
	}
	// 按创建时间倒序：inv-2（已撤销）在前
	if rows[1][0] != "feedface" || rows[1][3] != string(model.InvitationRevoked) {
		t.Errorf("第一行数据不符: %v", rows[1])
	}
	if rows[2][3] != string(model.InvitationActive) || rows[2][5] != "2" {
		t.Errorf("第二行数据不符: %v", rows[2])
	}

	usage, err := f.GetRows("使用记录")
	if err != nil {
		t.Fatalf("读取使用记录失败: %v", err)
	}
	if len(usage) != 2 || usage[1][1] != "s1" {
		t.Errorf("使用记录不符: %v", usage)
	}
}

// ── InvitationCalendar ──

func TestExportService_InvitationCalendar(t *testing.T) {
	svc, store := setupTestExportService()
	seedExportInvitations(store)

	content, filename, err := svc.InvitationCalendar(context.Background(), testIssuerID)
	if err != nil {
		t.Fatalf("生成日历失败: %v", err)
	}
	if filename != "邀请_ana-souza.ics" {
		t.Errorf("文件名不符: %s", filename)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(content))
	if err != nil {
		t.Fatalf("日历无法解析: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("只有仍有效的邀请生成事件，期望 1，实际 %d", len(events))
	}
	if events[0].Id() != "inv-1@conduzauto" {
		t.Errorf("事件 UID 不符: %s", events[0].Id())
	}
	start, err := events[0].GetStartAt()
	if err != nil {
		t.Fatalf("读取开始时间失败: %v", err)
	}
	if !start.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Errorf("事件应在过期时刻，实际 %v", start)
	}
}
