package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoFoursomes  = errors.New("排组中无分组")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入
type ExportService interface {
	// ExportWeek 导出周排组为 Excel，附带本赛季同组次数表
	ExportWeek(ctx context.Context, weekID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportWeek
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "排组"：时段 | 组号 | 球员1..4 | 左手人数
//   - Sheet "同组次数"：球员A | 球员B | 次数（次数倒序）

func (s *exportService) ExportWeek(ctx context.Context, weekID string) (*bytes.Buffer, string, error) {
	week, err := s.repo.Week.GetByID(ctx, weekID)
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrWeekNotFound
		}
		s.logger.Error("查询赛周失败", zap.Error(err))
		return nil, "", err
	}

	schedule, err := s.repo.Schedule.GetByWeek(ctx, weekID)
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrScheduleNotFound
		}
		s.logger.Error("查询排组失败", zap.Error(err))
		return nil, "", err
	}
	if len(schedule.Foursomes) == 0 {
		return nil, "", ErrExportNoFoursomes
	}

	participants, err := s.repo.Participant.ListBySeason(ctx, week.SeasonID)
	if err != nil {
		s.logger.Error("查询名册失败", zap.Error(err))
		return nil, "", err
	}
	byID := make(map[string]*model.Participant, len(participants))
	for i := range participants {
		byID[participants[i].ParticipantID] = &participants[i]
	}

	pairings, err := s.repo.PairingHistory.ListBySeason(ctx, week.SeasonID)
	if err != nil {
		s.logger.Error("查询同组历史失败", zap.Error(err))
		return nil, "", err
	}

	seasonName := week.SeasonID
	if week.Season != nil {
		seasonName = week.Season.Name
	}
	title := fmt.Sprintf("%s 第%d周 %s", seasonName, week.WeekNumber, week.PlayDate.Format(dateLayout))

	name := func(id string) string {
		if p, ok := byID[id]; ok {
			return p.Name
		}
		return id
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── 排组 ──
	sheet := "排组"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	lastCol := colName(2 + model.MaxFoursomeSize)
	f.SetColWidth(sheet, "A", "B", 10)
	f.SetColWidth(sheet, "C", lastCol, 16)

	f.SetCellValue(sheet, "A1", title)
	f.MergeCell(sheet, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	f.SetCellValue(sheet, "A2", "时段")
	f.SetCellValue(sheet, "B2", "组号")
	for i := 0; i < model.MaxFoursomeSize; i++ {
		f.SetCellValue(sheet, cell(colName(2+i), 2), fmt.Sprintf("球员%d", i+1))
	}
	f.SetCellValue(sheet, cell(colName(2+model.MaxFoursomeSize), 2), "左手人数")

	foursomes := append([]model.Foursome(nil), schedule.Foursomes...)
	sort.SliceStable(foursomes, func(i, j int) bool {
		if foursomes[i].TimeSlot != foursomes[j].TimeSlot {
			return foursomes[i].TimeSlot == model.SlotMorning
		}
		return foursomes[i].Position < foursomes[j].Position
	})

	row := 3
	for _, fs := range foursomes {
		f.SetCellValue(sheet, cell("A", row), slotLabel(fs.TimeSlot))
		f.SetCellValue(sheet, cell("B", row), fs.Position)
		lefties := 0
		for i := 0; i < model.MaxFoursomeSize; i++ {
			text := "-"
			if i < len(fs.PlayerIDs) {
				text = name(fs.PlayerIDs[i])
				if p, ok := byID[fs.PlayerIDs[i]]; ok && p.Handedness == model.HandednessLeft {
					lefties++
				}
			}
			f.SetCellValue(sheet, cell(colName(2+i), row), text)
		}
		f.SetCellValue(sheet, cell(colName(2+model.MaxFoursomeSize), row), lefties)
		row++
	}

	// ── 同组次数 ──
	pairSheet := "同组次数"
	f.NewSheet(pairSheet)
	f.SetColWidth(pairSheet, "A", "B", 16)
	f.SetCellValue(pairSheet, "A1", "球员A")
	f.SetCellValue(pairSheet, "B1", "球员B")
	f.SetCellValue(pairSheet, "C1", "次数")
	f.SetCellStyle(pairSheet, "A1", "C1", headerStyle)

	sort.SliceStable(pairings, func(i, j int) bool { return pairings[i].Count > pairings[j].Count })
	for i, p := range pairings {
		r := i + 2
		f.SetCellValue(pairSheet, cell("A", r), name(p.PlayerA))
		f.SetCellValue(pairSheet, cell("B", r), name(p.PlayerB))
		f.SetCellValue(pairSheet, cell("C", r), p.Count)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("排组_%s_第%d周.xlsx", seasonName, week.WeekNumber)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
