package provider

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/override"
)

const (
	StageScan = "scan"
	StageNFO  = "nfo"
)

// Error 是 provider 调用边界上的可追溯错误（带 provider 名与阶段）。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // scan / poster / fanart
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PanicError 表示 provider 内部 panic，已在调用边界被恢复。
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// ErrTimeout 表示 provider 调用超过了 provider_timeout。
var ErrTimeout = errors.New("provider 调用超时")

// Scan 在边界内调用一次 metadata provider：新建暂存 Writer（一个 pass）、施加超时、恢复 panic。
//
// 规则：
// - 成功返回才提交本 pass 的写入；失败（error / panic / 超时）的 pass 对记录没有任何影响
// - attempt.Contributed 是提交了的字段；失败时为空
func Scan(ctx context.Context, p MetadataProvider, rec *domain.Record, policy *override.Policy, timeout time.Duration) (attempt domain.ProviderAttempt, err error) {
	name := strings.ToLower(p.Name())
	attempt = domain.ProviderAttempt{Provider: name, Stage: StageScan}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	w := override.NewPass(policy, rec)

	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: string(debug.Stack())}
		}
		if err != nil {
			w.Discard()
			attempt.Found = false
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
				err = fmt.Errorf("%w（%s）: %w", ErrTimeout, timeout, err)
			}
			err = &Error{Provider: name, Stage: StageScan, Err: err}
			attempt.Error = err.Error()
			return
		}
		w.Commit()
		for _, f := range w.Written() {
			attempt.Contributed = append(attempt.Contributed, string(f))
		}
	}()

	attempt.Found, err = p.Scan(ctx, w.Record(), w)
	return attempt, err
}

// ScanNFO 让每个 provider 从本地 NFO 文本中发现外部 id；panic 被吞掉并视为未发现。
func ScanNFO(providers []MetadataProvider, text string, rec *domain.Record) (found []string) {
	for _, p := range providers {
		func() {
			defer func() { _ = recover() }()
			if p.ScanNFO(text, rec) {
				found = append(found, strings.ToLower(p.Name()))
			}
		}()
	}
	return found
}

// ResolveArtwork 按顺序尝试 provider，返回第一个有效的图片地址。
//
// 规则：
// - id 优先取 rec.IDs[provider]；没有则 ResolveID(title, year)，成功后回写 rec.IDs
// - ImageURL 返回的地址必须是 http(s) 才算有效
// - 全部失败返回 ok=false（上层使用占位图）
func ResolveArtwork(ctx context.Context, providers []ArtworkProvider, rec *domain.Record, kind domain.ArtKind, timeout time.Duration) (img domain.Image, ok bool, attempts []domain.ProviderAttempt) {
	for _, p := range providers {
		name := strings.ToLower(p.Name())
		a := domain.ProviderAttempt{Provider: name, Stage: string(kind)}
		u, err := resolveOne(ctx, p, rec, timeout)
		switch {
		case err != nil:
			a.Error = (&Error{Provider: name, Stage: string(kind), Err: err}).Error()
		case u == "":
		case !IsHTTPURL(u):
			a.Error = fmt.Sprintf("无效的图片地址：%q", u)
		default:
			a.Found = true
			attempts = append(attempts, a)
			return domain.Image{URL: u, Source: name}, true, attempts
		}
		attempts = append(attempts, a)
		if ctx.Err() != nil {
			break
		}
	}
	return domain.Image{}, false, attempts
}

func resolveOne(ctx context.Context, p ArtworkProvider, rec *domain.Record, timeout time.Duration) (u string, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: string(debug.Stack())}
		}
	}()

	id := rec.ID(p.Name())
	if id == "" {
		id, err = p.ResolveID(ctx, rec.Title(), rec.Year())
		if err != nil || id == "" {
			return "", err
		}
		rec.SetID(p.Name(), id)
	}
	return p.ImageURL(ctx, id)
}
