package service

import (
	"errors"
	"sort"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
)

// ── 排组生成错误 ──

var ErrInsufficientParticipants = errors.New("本周可排球员不足 4 人")

// minEligible 生成排组所需最少可排人数
const minEligible = 4

// PairingLookup 历史同组次数只读视图
type PairingLookup interface {
	Count(a, b string) int
}

// ScheduleGenerator 周排组生成器
// 纯计算、无 I/O，相同输入得到相同输出；只读历史，不写历史
type ScheduleGenerator struct {
	maxCandidatePool int
}

// NewScheduleGenerator 创建生成器，maxCandidatePool 限制每次组合搜索的候选人数
func NewScheduleGenerator(maxCandidatePool int) *ScheduleGenerator {
	if maxCandidatePool < model.MaxFoursomeSize-1 {
		maxCandidatePool = 12
	}
	return &ScheduleGenerator{maxCandidatePool: maxCandidatePool}
}

// EligibleParticipants 过滤出显式 available 的球员，按 ID 排序
func EligibleParticipants(participants []model.Participant, availability model.AvailabilityMap) []model.Participant {
	out := make([]model.Participant, 0, len(participants))
	for _, p := range participants {
		if availability.IsAvailable(p.ParticipantID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}

// Generate 生成草稿排组（未持久化）
func (g *ScheduleGenerator) Generate(week *model.Week, participants []model.Participant, availability model.AvailabilityMap, history PairingLookup) (*model.Schedule, error) {
	if history == nil {
		history = emptyPairings{}
	}

	// ── 阶段1: 可排球员 ──
	eligible := EligibleParticipants(participants, availability)
	if len(eligible) < minEligible {
		return nil, ErrInsufficientParticipants
	}

	// ── 阶段2: 偏好分桶 ──
	var morningOnly, afternoonOnly, flexible []model.Participant
	for _, p := range eligible {
		switch p.TimePreference {
		case model.PreferenceMorningOnly:
			morningOnly = append(morningOnly, p)
		case model.PreferenceAfternoonOnly:
			afternoonOnly = append(afternoonOnly, p)
		default:
			flexible = append(flexible, p)
		}
	}

	// ── 阶段3: 时段分配 ──
	toMorning := splitFlexible(len(morningOnly), len(afternoonOnly), len(flexible))
	morning := append(append([]model.Participant{}, morningOnly...), flexible[:toMorning]...)
	afternoon := append(append([]model.Participant{}, afternoonOnly...), flexible[toMorning:]...)

	// ── 阶段4: 组内贪心 ──
	schedule := &model.Schedule{
		WeekID: week.WeekID,
		Status: model.ScheduleStatusDraft,
	}
	for _, slot := range []struct {
		name    string
		players []model.Participant
	}{
		{model.SlotMorning, morning},
		{model.SlotAfternoon, afternoon},
	} {
		groups := g.formGroups(slot.players, history)
		for i, grp := range groups {
			ids := make(model.StringArray, len(grp))
			for j, p := range grp {
				ids[j] = p.ParticipantID
			}
			schedule.Foursomes = append(schedule.Foursomes, model.Foursome{
				TimeSlot:  slot.name,
				Position:  i + 1,
				PlayerIDs: ids,
			})
		}
	}

	return schedule, nil
}

// splitFlexible 返回分到上午的灵活球员数量
// 优先两时段均为 4 的倍数，其次人数差最小；仍相同时偏向固定人数较少的时段，再偏向上午
func splitFlexible(fixedMorning, fixedAfternoon, flexible int) int {
	favorMorning := fixedMorning <= fixedAfternoon

	best, bestPartial, bestGap := -1, 0, 0
	for k := 0; k <= flexible; k++ {
		m, a := fixedMorning+k, fixedAfternoon+flexible-k
		partial := 0
		if m%model.MaxFoursomeSize != 0 {
			partial++
		}
		if a%model.MaxFoursomeSize != 0 {
			partial++
		}
		gap := m - a
		if gap < 0 {
			gap = -gap
		}

		switch {
		case best < 0,
			partial < bestPartial,
			partial == bestPartial && gap < bestGap,
			partial == bestPartial && gap == bestGap && favorMorning && k > best:
			best, bestPartial, bestGap = k, partial, gap
		}
	}
	return best
}

// formGroups 依次取 ID 最小的未分组球员为锚点，从剩余候选中选出使历史同组次数之和最小的搭档
// 平局依次比较左右手均衡度与 ID 字典序
func (g *ScheduleGenerator) formGroups(players []model.Participant, history PairingLookup) [][]model.Participant {
	pool := append([]model.Participant{}, players...)
	sort.Slice(pool, func(i, j int) bool { return pool[i].ParticipantID < pool[j].ParticipantID })

	var groups [][]model.Participant
	for len(pool) > 0 {
		anchor := pool[0]
		rest := pool[1:]

		need := model.MaxFoursomeSize - 1
		if len(rest) < need {
			need = len(rest)
		}
		candidates := rest
		if len(candidates) > g.maxCandidatePool {
			candidates = candidates[:g.maxCandidatePool]
		}

		picked := bestPartners(anchor, candidates, need, history)

		group := []model.Participant{anchor}
		chosen := make(map[string]bool, len(picked))
		for _, idx := range picked {
			group = append(group, candidates[idx])
			chosen[candidates[idx].ParticipantID] = true
		}
		groups = append(groups, group)

		next := rest[:0:0]
		for _, p := range rest {
			if !chosen[p.ParticipantID] {
				next = append(next, p)
			}
		}
		pool = next
	}
	return groups
}

// bestPartners 穷举 candidates 中 need 个下标的组合，返回最优组合
// 组合按下标字典序枚举，只在严格更优时替换，因此平局自然落到 ID 字典序最小的组合
func bestPartners(anchor model.Participant, candidates []model.Participant, need int, history PairingLookup) []int {
	if need == 0 {
		return nil
	}

	var (
		best          []int
		bestCost      = -1
		bestImbalance = 0
	)
	combo := make([]int, need)

	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == need {
			members := make([]model.Participant, 0, need+1)
			members = append(members, anchor)
			for _, idx := range combo {
				members = append(members, candidates[idx])
			}
			cost := groupPairingCost(members, history)
			imbalance := handednessImbalance(members)
			if bestCost < 0 || cost < bestCost || (cost == bestCost && imbalance < bestImbalance) {
				best = append(best[:0], combo...)
				bestCost, bestImbalance = cost, imbalance
			}
			return
		}
		for i := start; i <= len(candidates)-(need-depth); i++ {
			combo[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)

	return best
}

// groupPairingCost 组内两两历史同组次数之和
func groupPairingCost(members []model.Participant, history PairingLookup) int {
	cost := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			cost += history.Count(members[i].ParticipantID, members[j].ParticipantID)
		}
	}
	return cost
}

// handednessImbalance |左手 - 右手|
func handednessImbalance(members []model.Participant) int {
	left := 0
	for _, m := range members {
		if m.Handedness == model.HandednessLeft {
			left++
		}
	}
	d := 2*left - len(members)
	if d < 0 {
		d = -d
	}
	return d
}

type emptyPairings struct{}

func (emptyPairings) Count(string, string) int { return 0 }
