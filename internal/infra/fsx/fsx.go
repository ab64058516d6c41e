package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 测试里替换它来模拟 rename 失败。
var renameFunc = os.Rename

const tmpMarker = ".tmp-"

// PathTypeConflictError：jukebox 里本该是文件的位置是目录（或反过来）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("路径已被占用：%s 是 %s，需要 %s", e.Path, e.Got, e.Want)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFileAtomic 在 dir 下原子写入 name，已存在则替换。
// 缓存快照、report、导出的 NFO 都走这里。
func WriteFileAtomic(dir, name string, data []byte) error {
	return commit(dir, name, data)
}

// WriteFileAtomicNoOverwrite 目标已存在时返回 os.ErrExist，不替换。
// 用于 jukebox 中的图片：用户手工放进去的 poster/fanart 保持原样。
func WriteFileAtomicNoOverwrite(dir, name string, data []byte) error {
	dst := filepath.Join(filepath.Clean(dir), name)
	fi, err := os.Lstat(dst)
	switch {
	case os.IsNotExist(err):
		return commit(dir, name, data)
	case err != nil:
		return err
	case fi.IsDir():
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	case !fi.Mode().IsRegular():
		return &PathTypeConflictError{Path: dst, Want: "file", Got: fi.Mode().Type().String()}
	default:
		return os.ErrExist
	}
}

// commit：同目录临时文件（"." 前缀，不出现在 jukebox 视图里）写完 fsync 后 rename。
// 任一步失败都删掉临时文件。
func commit(dir, name string, data []byte) (err error) {
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+name+tmpMarker+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = renameFunc(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return err
	}
	syncDir(dir)
	return nil
}

// RemoveStaleTemps 清理上次运行中断留下的临时文件，返回删除数量。dir 不存在返回 0, nil。
func RemoveStaleTemps(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isTempName(e.Name()) {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed, nil
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tmpMarker)
}

// syncDir 尽力而为；Windows 不支持目录 fsync。
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	if f, err := os.Open(dir); err == nil {
		_ = f.Sync()
		_ = f.Close()
	}
}
