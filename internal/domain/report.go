package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusCached    = "cached"
	StatusFailed    = "failed"
)

// Stage 是单条记录在 pipeline 中到达的状态。
type Stage string

const (
	StageDiscovered      Stage = "DISCOVERED"
	StageMetadataScanned Stage = "METADATA_SCANNED"
	StageArtworkResolved Stage = "ARTWORK_RESOLVED"
	StagePersisted       Stage = "PERSISTED"
)

const (
	ErrCodeCacheCorrupt      = "cache_corrupt"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeCanceled          = "canceled"
	ErrCodeLocked            = "locked"
	ErrCodeScanFailed        = "scan_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Cached    int `json:"cached"`
	Failed    int `json:"failed"`
}

type ItemResult struct {
	Key  string `json:"key"`
	Kind Kind   `json:"kind"`

	Status    string `json:"status"`
	Stage     Stage  `json:"stage"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Attempts []ProviderAttempt `json:"attempts"`
	Artwork  map[ArtKind]Image `json:"artwork,omitempty"`
	Files    []string          `json:"files"`
}

// ProviderAttempt 记录一次 provider 调用的结果：贡献了哪些字段，或者为什么失败。
type ProviderAttempt struct {
	Provider    string   `json:"provider"`
	Stage       string   `json:"stage"` // scan / poster / fanart
	Found       bool     `json:"found"`
	Contributed []string `json:"contributed,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 key 字典序；key=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Key
		b := r.Items[j].Key
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusCached:
			s.Cached++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
