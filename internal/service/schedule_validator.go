package service

import (
	"fmt"
	"sort"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/dto"
	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
)

// slotImbalanceThreshold 两时段人数差超过该值（且总人数不少于 8）时告警
const (
	slotImbalanceThreshold = 4
	slotImbalanceMinTotal  = 8
)

// ScheduleValidator 排组校验器（纯函数，无状态）
type ScheduleValidator struct{}

// NewScheduleValidator 创建校验器
func NewScheduleValidator() *ScheduleValidator {
	return &ScheduleValidator{}
}

func slotLabel(slot string) string {
	switch slot {
	case model.SlotMorning:
		return "上午"
	case model.SlotAfternoon:
		return "下午"
	default:
		return slot
	}
}

func foursomeLabel(f *model.Foursome) string {
	return fmt.Sprintf("%s第 %d 组", slotLabel(f.TimeSlot), f.Position)
}

func newValidationResult() *dto.ValidationResult {
	return &dto.ValidationResult{Errors: []string{}, Warnings: []string{}}
}

type validationCollector struct {
	res *dto.ValidationResult
}

func (r *validationCollector) errorf(format string, args ...interface{}) {
	r.res.Errors = append(r.res.Errors, fmt.Sprintf(format, args...))
}

func (r *validationCollector) warnf(format string, args ...interface{}) {
	r.res.Warnings = append(r.res.Warnings, fmt.Sprintf(format, args...))
}

func (r *validationCollector) result() dto.ValidationResult {
	r.res.Valid = len(r.res.Errors) == 0
	return *r.res
}

// ════════════════════════════════════════════════════════════
// Validate 硬约束与软约束
// ════════════════════════════════════════════════════════════

// Validate 对照本周可排球员检查排组
func (v *ScheduleValidator) Validate(schedule *model.Schedule, eligible []model.Participant, week *model.Week) dto.ValidationResult {
	c := &validationCollector{res: newValidationResult()}
	if schedule == nil {
		c.errorf("排组为空")
		return c.result()
	}

	eligibleByID := make(map[string]*model.Participant, len(eligible))
	for i := range eligible {
		eligibleByID[eligible[i].ParticipantID] = &eligible[i]
	}

	seen := make(map[string]string) // playerID → 所在分组
	total := 0

	for i := range schedule.Foursomes {
		f := &schedule.Foursomes[i]
		label := foursomeLabel(f)

		if f.TimeSlot != model.SlotMorning && f.TimeSlot != model.SlotAfternoon {
			c.errorf("%s：未知时段 %q", label, f.TimeSlot)
		}

		size := len(f.PlayerIDs)
		switch {
		case size == 0:
			c.warnf("%s为空", label)
		case size > model.MaxFoursomeSize:
			c.errorf("%s人数为 %d，超过上限 %d", label, size, model.MaxFoursomeSize)
		}
		total += size

		var members []*model.Participant
		for _, pid := range f.PlayerIDs {
			if prev, dup := seen[pid]; dup {
				c.errorf("球员 %s 同时出现在%s与%s", pid, prev, label)
			} else {
				seen[pid] = label
			}

			p, ok := eligibleByID[pid]
			if !ok {
				c.errorf("球员 %s 本周不可排，却出现在%s", pid, label)
				continue
			}
			members = append(members, p)

			if !p.AllowsSlot(f.TimeSlot) {
				c.errorf("球员 %s 的时段偏好为 %s，不能排入%s", p.Name, p.TimePreference, slotLabel(f.TimeSlot))
			}
		}

		if len(members) >= 3 && len(members) == size {
			if hand, same := sameHandedness(members); same {
				c.warnf("%s全部为%s手球员", label, handLabel(hand))
			}
		}
	}

	if total > len(eligible) {
		c.errorf("已排 %d 人次，超过本周可排人数 %d", total, len(eligible))
	}

	morning, afternoon := schedule.SlotCount(model.SlotMorning), schedule.SlotCount(model.SlotAfternoon)
	gap := morning - afternoon
	if gap < 0 {
		gap = -gap
	}
	if morning+afternoon >= slotImbalanceMinTotal && gap > slotImbalanceThreshold {
		c.warnf("上午 %d 人、下午 %d 人，时段人数严重不均", morning, afternoon)
	}

	return c.result()
}

// ════════════════════════════════════════════════════════════
// ValidateBusinessRules 业务规则二次检查
// ════════════════════════════════════════════════════════════

// ValidateBusinessRules participants 为球员名册（可跨赛季），用于检查赛季归属
func (v *ScheduleValidator) ValidateBusinessRules(schedule *model.Schedule, participants []model.Participant, week *model.Week) dto.ValidationResult {
	c := &validationCollector{res: newValidationResult()}
	if schedule == nil {
		c.errorf("排组为空")
		return c.result()
	}

	// R1: 至少一个 2 人及以上的分组
	playable := false
	for _, f := range schedule.Foursomes {
		if len(f.PlayerIDs) >= 2 {
			playable = true
			break
		}
	}
	if !playable {
		c.errorf("排组中没有 2 人及以上的分组")
	}

	// R2: 跨时段重复
	slotOf := make(map[string]string)
	for _, f := range schedule.Foursomes {
		for _, pid := range f.PlayerIDs {
			if prev, ok := slotOf[pid]; ok && prev != f.TimeSlot {
				c.errorf("球员 %s 同时排在上午与下午", pid)
				continue
			}
			slotOf[pid] = f.TimeSlot
		}
	}

	// R3: 组号连续
	for _, slot := range []string{model.SlotMorning, model.SlotAfternoon} {
		var positions []int
		for _, f := range schedule.Foursomes {
			if f.TimeSlot == slot {
				positions = append(positions, f.Position)
			}
		}
		sort.Ints(positions)
		for i, pos := range positions {
			if pos != i+1 {
				c.warnf("%s组号不连续：期望第 %d 组，实际第 %d 组", slotLabel(slot), i+1, pos)
				break
			}
		}
	}

	// R4: 赛季归属
	if week != nil {
		byID := make(map[string]*model.Participant, len(participants))
		for i := range participants {
			byID[participants[i].ParticipantID] = &participants[i]
		}
		for _, pid := range sortedKeys(slotOf) {
			p, ok := byID[pid]
			if !ok {
				c.errorf("球员 %s 不在名册中", pid)
				continue
			}
			if p.SeasonID != week.SeasonID {
				c.errorf("球员 %s 属于其他赛季", p.Name)
			}
		}
	}

	return c.result()
}

// MergeValidation 合并两次校验结果
func MergeValidation(results ...dto.ValidationResult) dto.ValidationResult {
	out := dto.ValidationResult{Errors: []string{}, Warnings: []string{}}
	for _, r := range results {
		out.Errors = append(out.Errors, r.Errors...)
		out.Warnings = append(out.Warnings, r.Warnings...)
	}
	out.Valid = len(out.Errors) == 0
	return out
}

func sameHandedness(members []*model.Participant) (string, bool) {
	first := members[0].Handedness
	for _, m := range members[1:] {
		if m.Handedness != first {
			return "", false
		}
	}
	return first, true
}

func handLabel(h string) string {
	if h == model.HandednessLeft {
		return "左"
	}
	return "右"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
