package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/jukebox/internal/config"
	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/infra/cache"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRun_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// stdout 非 TTY 时只能输出一个 RunReport JSON；摘要走 stderr。
	root := t.TempDir()

	stdout, stderr, err := execute(t, "run", root)
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}

	var rr domain.RunReport
	dec := json.NewDecoder(strings.NewReader(stdout))
	if err := dec.Decode(&rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout)
	}
	if dec.More() {
		t.Fatalf("stdout 只能包含一个 JSON：%q", stdout)
	}
	if !rr.DryRun || rr.Path != root || len(rr.Items) != 0 {
		t.Fatalf("report 不符合预期：%+v", rr)
	}
	if !strings.Contains(stderr, "完成：processed=0 cached=0 failed=0") {
		t.Fatalf("stderr 应包含摘要：%q", stderr)
	}
	if _, err := os.Stat(filepath.Join(root, config.DefaultJukeboxDir)); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建 jukebox 目录：%v", err)
	}
}

func TestRun_ApplyWritesReportFile(t *testing.T) {
	root := t.TempDir()

	_, stderr, err := execute(t, "run", root, "--apply", "--concurrency", "1")
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}

	b, err := os.ReadFile(filepath.Join(root, config.DefaultJukeboxDir, ReportName))
	if err != nil {
		t.Fatalf("apply 模式应写出 report：%v", err)
	}
	var rr domain.RunReport
	if err := json.Unmarshal(b, &rr); err != nil {
		t.Fatalf("report 不是合法 JSON：%v", err)
	}
	if rr.DryRun {
		t.Fatalf("apply 模式 dry_run 应为 false")
	}
}

func TestRun_ConfigNotFound_ReportsFailedItem(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	stdout, _, err := execute(t, "run", "--config", missing)
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("期望 errRunFailed，实际 %v", err)
	}

	var rr domain.RunReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatalf("配置错误也必须输出 RunReport JSON：%v\nstdout=%q", err, stdout)
	}
	if rr.Summary.Failed != 1 || len(rr.Items) != 1 {
		t.Fatalf("期望一条合成失败条目：%+v", rr)
	}
	if got := rr.Items[0].ErrorCode; got != config.ErrCodeNotFound {
		t.Fatalf("error_code=%q", got)
	}
}

func TestRun_ApplyFalseOverridesConfig(t *testing.T) {
	root := t.TempDir()
	cfg := filepath.Join(root, config.FileName)
	if err := os.WriteFile(cfg, []byte("path = \".\"\napply = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := execute(t, "run", "--config", cfg, "--apply=false")
	if err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s", err, stderr)
	}
	var rr domain.RunReport
	if err := json.Unmarshal([]byte(stdout), &rr); err != nil {
		t.Fatal(err)
	}
	if !rr.DryRun {
		t.Fatalf("--apply=false 应覆盖配置里的 apply=true")
	}
}

func TestConfigInit_WritesSampleOnce(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", config.FileName)

	stdout, _, err := execute(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init 失败：%v", err)
	}
	if !strings.Contains(stdout, target) {
		t.Fatalf("输出应包含目标路径：%q", stdout)
	}
	if fi, err := os.Stat(target); err != nil || fi.Size() == 0 {
		t.Fatalf("示例配置未写出：%v", err)
	}

	if _, _, err := execute(t, "config", "init", "--path", target); err == nil {
		t.Fatalf("已存在的配置不应被覆盖")
	}
}

func TestConfigValidate(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, config.FileName), []byte("path = \".\"\ncache = \"sqlite\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "config", "validate", root)
	if err != nil {
		t.Fatalf("config validate 失败：%v", err)
	}
	for _, want := range []string{"配置有效", "cache: sqlite", "metadata: nfo -> filename -> imdb"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, stdout)
		}
	}

	if err := os.WriteFile(filepath.Join(root, config.FileName), []byte("path = \".\"\nbogus = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, "config", "validate", root); config.Code(err) != config.ErrCodeInvalid {
		t.Fatalf("未知键应报 config_invalid，实际 %v", err)
	}
}

func TestPriorities_PrintsTableAndLimits(t *testing.T) {
	root := t.TempDir()
	cfg := "path = \".\"\n[priority]\nskip_not_in_list = true\n[priority.tv]\ntitle = \"filename,nfo\"\n"
	if err := os.WriteFile(filepath.Join(root, config.FileName), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "priorities", root, "--kind", "tv")
	if err != nil {
		t.Fatalf("priorities 失败：%v", err)
	}
	for _, want := range []string{"kind: tv", "people.actors", "filename > nfo", "max_actor", "skip_not_in_list", "true"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, "priorities", root, "--kind", "music"); err == nil {
		t.Fatalf("未知 kind 应报错")
	}
}

func seedCache(t *testing.T, root string) {
	t.Helper()
	store, err := cache.OpenXML(filepath.Join(root, config.DefaultJukeboxDir, "cache", "records"), false)
	if err != nil {
		t.Fatal(err)
	}
	snap := cache.Snapshot{
		Key:       "heat.1995",
		Kind:      domain.KindMovie,
		SourceMod: 1700000000,
		ScannedAt: time.Now().Add(-2 * time.Hour),
		Files:     []string{"heat.1995.mkv"},
		Fields: []cache.FieldValue{
			{Name: "title", Source: "imdb", Value: "Heat"},
			{Name: "genres", Source: "imdb", Items: []string{"Crime", "Drama"}},
		},
		IDs:     []cache.ExternalID{{Provider: "imdb", Value: "tt0113277"}},
		Artwork: []cache.Artwork{{Kind: domain.ArtPoster, Source: "tmdb", URL: "https://img.test/heat.jpg"}},
	}
	if err := store.Save(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
}

func TestCacheList_ShowsSeededRecords(t *testing.T) {
	root := t.TempDir()
	seedCache(t, root)

	stdout, _, err := execute(t, "cache", "list", root)
	if err != nil {
		t.Fatalf("cache list 失败：%v", err)
	}
	for _, want := range []string{"heat.1995", "movie", "2 hours ago", "1 条记录"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, stdout)
		}
	}
}

func TestCacheList_EmptyCache(t *testing.T) {
	root := t.TempDir()

	stdout, _, err := execute(t, "cache", "list", root)
	if err != nil {
		t.Fatalf("cache list 失败：%v", err)
	}
	if !strings.Contains(stdout, "缓存为空") {
		t.Fatalf("空缓存应有提示：%q", stdout)
	}
}

func TestCacheShow_TableAndJSON(t *testing.T) {
	root := t.TempDir()
	seedCache(t, root)

	stdout, _, err := execute(t, "cache", "show", "heat.1995", root)
	if err != nil {
		t.Fatalf("cache show 失败：%v", err)
	}
	for _, want := range []string{"key: heat.1995", "Heat", "Crime, Drama", "id.imdb", "tt0113277", "poster (tmdb)"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, stdout)
		}
	}

	stdout, _, err = execute(t, "cache", "show", "heat.1995", root, "--json")
	if err != nil {
		t.Fatalf("cache show --json 失败：%v", err)
	}
	var snap cache.Snapshot
	if err := json.Unmarshal([]byte(stdout), &snap); err != nil {
		t.Fatalf("--json 输出不是合法 JSON：%v", err)
	}
	if snap.Key != "heat.1995" || len(snap.Fields) != 2 {
		t.Fatalf("快照内容不符合预期：%+v", snap)
	}

	if _, _, err := execute(t, "cache", "show", "ronin.1998", root); err == nil {
		t.Fatalf("不存在的 key 应报错")
	}
}
