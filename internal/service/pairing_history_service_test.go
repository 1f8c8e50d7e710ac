package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/rservant/indoor-golf-scheduler-sub005/internal/model"
)

func setupPairingService() (PairingHistoryService, *mockRepos) {
	repo, m := newMockRepos()
	seedWeek(m, availablePlayers(8))
	return NewPairingHistoryService(repo, zap.NewNop()), m
}

func TestPairKey_Canonical(t *testing.T) {
	if PairKey("b", "a") != PairKey("a", "b") {
		t.Error("(a,b) 与 (b,a) 应得到相同键")
	}
	if PairKey("a", "b") != "a|b" {
		t.Errorf("期望 a|b，实际: %s", PairKey("a", "b"))
	}
}

func TestPairsOf(t *testing.T) {
	s := &model.Schedule{Foursomes: []model.Foursome{
		foursome(model.SlotMorning, 1, "p04", "p01", "p03", "p02"),
		foursome(model.SlotAfternoon, 1, "p05", "p06"),
		foursome(model.SlotAfternoon, 2, "p07"),
	}}
	pairs := PairsOf(s)
	if len(pairs) != 7 {
		t.Fatalf("期望 6+1 对，实际: %d", len(pairs))
	}
	for _, p := range pairs {
		if p[0] >= p[1] {
			t.Errorf("球员对应按字典序排列，实际: %v", p)
		}
	}
}

func TestPairingHistory_RecordAndCount(t *testing.T) {
	svc, _ := setupPairingService()
	ctx := context.Background()
	s := &model.Schedule{Foursomes: []model.Foursome{
		foursome(model.SlotMorning, 1, "p01", "p02", "p03", "p04"),
	}}

	for i := 0; i < 2; i++ {
		if err := svc.RecordPairings(ctx, testSeasonID, s); err != nil {
			t.Fatalf("期望成功，实际: %v", err)
		}
	}

	n, err := svc.PairingCount(ctx, testSeasonID, "p03", "p01")
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if n != 2 {
		t.Errorf("期望 2，实际: %d", n)
	}
	if n, _ := svc.PairingCount(ctx, testSeasonID, "p01", "p01"); n != 0 {
		t.Errorf("同一球员应为 0，实际: %d", n)
	}
	if n, _ := svc.PairingCount(ctx, testSeasonID, "p01", "p08"); n != 0 {
		t.Errorf("未同组应为 0，实际: %d", n)
	}
}

func TestPairingHistory_Monotonic(t *testing.T) {
	svc, _ := setupPairingService()
	ctx := context.Background()
	schedules := []*model.Schedule{
		{Foursomes: []model.Foursome{foursome(model.SlotMorning, 1, "p01", "p02", "p03", "p04")}},
		{Foursomes: []model.Foursome{foursome(model.SlotMorning, 1, "p01", "p05", "p06", "p07")}},
		{Foursomes: []model.Foursome{foursome(model.SlotMorning, 1, "p01", "p02", "p05", "p08")}},
	}

	prev := 0
	for _, s := range schedules {
		if err := svc.RecordPairings(ctx, testSeasonID, s); err != nil {
			t.Fatalf("期望成功，实际: %v", err)
		}
		n, _ := svc.PairingCount(ctx, testSeasonID, "p01", "p02")
		if n < prev {
			t.Errorf("同组次数不应减少：%d → %d", prev, n)
		}
		prev = n
	}
	if prev != 2 {
		t.Errorf("期望 p01/p02 同组 2 次，实际: %d", prev)
	}
}

func TestPairingHistory_LoadMatrixAndCost(t *testing.T) {
	svc, _ := setupPairingService()
	ctx := context.Background()
	s := &model.Schedule{Foursomes: []model.Foursome{
		foursome(model.SlotMorning, 1, "p01", "p02", "p03", "p04"),
	}}
	_ = svc.RecordPairings(ctx, testSeasonID, s)

	m, err := svc.LoadMatrix(ctx, testSeasonID)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if m.Count("p02", "p01") != 1 {
		t.Errorf("期望 1，实际: %d", m.Count("p02", "p01"))
	}
	if cost := m.ScheduleCost(s); cost != 6 {
		t.Errorf("期望成本 6，实际: %d", cost)
	}
	if cost := m.ScheduleCost(nil); cost != 0 {
		t.Errorf("空排组成本应为 0，实际: %d", cost)
	}
}

func TestPairingHistory_ListAndReset(t *testing.T) {
	svc, _ := setupPairingService()
	ctx := context.Background()
	_ = svc.RecordPairings(ctx, testSeasonID, &model.Schedule{Foursomes: []model.Foursome{
		foursome(model.SlotMorning, 1, "p01", "p02"),
	}})
	_ = svc.RecordPairings(ctx, testSeasonID, &model.Schedule{Foursomes: []model.Foursome{
		foursome(model.SlotMorning, 1, "p01", "p02", "p03"),
	}})

	list, err := svc.ListPairings(ctx, testSeasonID)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if len(list) != 3 || list[0].Count != 2 {
		t.Errorf("期望 3 条且首条次数为 2，实际: %+v", list)
	}

	n, err := svc.ResetSeason(ctx, testSeasonID)
	if err != nil || n != 3 {
		t.Errorf("期望删除 3 行，实际: %d, %v", n, err)
	}
	if c, _ := svc.PairingCount(ctx, testSeasonID, "p01", "p02"); c != 0 {
		t.Errorf("重置后应为 0，实际: %d", c)
	}

	if _, err := svc.ListPairings(ctx, "season-missing"); !errors.Is(err, ErrSeasonNotFound) {
		t.Errorf("期望 ErrSeasonNotFound，实际: %v", err)
	}
}
