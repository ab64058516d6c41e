package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		RunID:      "r1",
		Path:       "/abs/path",
		DryRun:     true,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Key: "Heat", Status: StatusCached},
			{Key: "", Status: StatusFailed}, // config/lock 等合成项
			{Key: "Alien", Status: StatusProcessed},
			{Key: "Brazil", Status: StatusFailed},
		},
	}

	r.Finalize()

	got := []string{r.Items[0].Key, r.Items[1].Key, r.Items[2].Key, r.Items[3].Key}
	if got[0] != "Alien" || got[1] != "Brazil" || got[2] != "Heat" || got[3] != "" {
		t.Fatalf("items 排序不符合契约：%v", got)
	}
	if r.Summary.Processed != 1 || r.Summary.Cached != 1 || r.Summary.Failed != 2 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
	if !bytes.Contains(b, []byte("\"run_id\":\"r1\"")) {
		t.Fatalf("缺少 run_id：%s", string(b))
	}
}
