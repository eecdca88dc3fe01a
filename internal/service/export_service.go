package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"conduzauto/backend/config"
	"conduzauto/backend/internal/model"
	"conduzauto/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoInvitations = errors.New("暂无邀请可导出")
	ErrExportGenerateFail  = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
//   - 导出以 bytes.Buffer / string 返回，由 Handler 层设置响应头后写入
//   - Excel：Sheet "邀请" 每行一条邀请，Sheet "使用记录" 每行一次兑换
//   - 日历：每条仍有效的邀请在过期时刻生成一个 VEVENT，方便讲师提前续发
type ExportService interface {
	ExportInvitations(ctx context.Context, issuerID string) (*bytes.Buffer, string, error)
	InvitationCalendar(ctx context.Context, issuerID string) (string, string, error)
}

type exportService struct {
	cfg    *config.InviteConfig
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.InviteConfig, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

func (s *exportService) loadInvitations(ctx context.Context, issuerID string) (*model.Instructor, []model.Invitation, error) {
	instructor, err := s.repo.Instructor.GetByID(ctx, issuerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotInstructor
		}
		s.logger.Error("查询讲师失败", zap.String("issuer_id", issuerID), zap.Error(err))
		return nil, nil, err
	}

	invs, err := s.repo.Invitation.ListByIssuer(ctx, issuerID)
	if err != nil {
		s.logger.Error("查询邀请列表失败", zap.String("issuer_id", issuerID), zap.Error(err))
		return nil, nil, err
	}
	return instructor, invs, nil
}

// ═══════════════════════════════════════════════════════════
// ExportInvitations 导出邀请为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportInvitations(ctx context.Context, issuerID string) (*bytes.Buffer, string, error) {
	instructor, invs, err := s.loadInvitations(ctx, issuerID)
	if err != nil {
		return nil, "", err
	}
	if len(invs) == 0 {
		return nil, "", ErrExportNoInvitations
	}

	now := s.now()
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "邀请"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"邀请码", "Slug", "链接", "状态", "已使用", "次数上限", "创建时间", "过期时间"}
	widths := []float64{36, 30, 60, 10, 8, 10, 22, 22}
	for i, h := range headers {
		col := colName(i)
		f.SetColWidth(sheet, col, col, widths[i])
		f.SetCellValue(sheet, cell(col, 1), h)
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	row := 2
	for i := range invs {
		inv := &invs[i]
		maxUses := "不限"
		if inv.MaxUses != nil {
			maxUses = strconv.Itoa(*inv.MaxUses)
		}
		values := []interface{}{
			inv.Code,
			inv.Slug,
			s.cfg.Link(inv.Slug, inv.Code),
			string(inv.State(now)),
			inv.UsageCount,
			maxUses,
			inv.CreatedAt.UTC().Format(time.DateTime),
			inv.ExpiresAt.UTC().Format(time.DateTime),
		}
		for c, v := range values {
			f.SetCellValue(sheet, cell(colName(c), row), v)
		}
		row++
	}

	// 使用记录
	const usageSheet = "使用记录"
	if _, err := f.NewSheet(usageSheet); err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetColWidth(usageSheet, "A", "A", 30)
	f.SetColWidth(usageSheet, "B", "B", 38)
	f.SetColWidth(usageSheet, "C", "C", 22)
	f.SetCellValue(usageSheet, "A1", "Slug")
	f.SetCellValue(usageSheet, "B1", "学员 ID")
	f.SetCellValue(usageSheet, "C1", "使用时间")
	f.SetCellStyle(usageSheet, "A1", "C1", headerStyle)

	row = 2
	for _, inv := range invs {
		for _, c := range inv.Consumptions {
			f.SetCellValue(usageSheet, cell("A", row), inv.Slug)
			f.SetCellValue(usageSheet, cell("B", row), c.SubjectID)
			f.SetCellValue(usageSheet, cell("C", row), c.ConsumedAt.UTC().Format(time.DateTime))
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("邀请_%s_%s.xlsx", instructor.SlugBase, now.UTC().Format("20060102"))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// InvitationCalendar 有效邀请的过期提醒
// ═══════════════════════════════════════════════════════════

func (s *exportService) InvitationCalendar(ctx context.Context, issuerID string) (string, string, error) {
	instructor, invs, err := s.loadInvitations(ctx, issuerID)
	if err != nil {
		return "", "", err
	}

	now := s.now()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//conduzauto//invitations//PT")
	cal.SetXWRCalName("邀请过期提醒 - " + instructor.Name)

	for i := range invs {
		inv := &invs[i]
		if inv.State(now) != model.InvitationActive {
			continue
		}

		event := cal.AddEvent(inv.InvitationID + "@conduzauto")
		event.SetDtStampTime(now)
		event.SetCreatedTime(inv.CreatedAt)
		event.SetStartAt(inv.ExpiresAt)
		event.SetEndAt(inv.ExpiresAt)
		event.SetSummary("邀请过期: " + inv.Slug)
		event.SetURL(s.cfg.Link(inv.Slug, inv.Code))

		desc := fmt.Sprintf("已使用 %d 次", inv.UsageCount)
		if inv.MaxUses != nil {
			desc = fmt.Sprintf("已使用 %d / %d 次", inv.UsageCount, *inv.MaxUses)
		}
		event.SetDescription(desc)
	}

	filename := fmt.Sprintf("邀请_%s.ics", instructor.SlugBase)
	return cal.Serialize(), filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
