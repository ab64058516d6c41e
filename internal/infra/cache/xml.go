package cache

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/John-Robertt/jukebox/internal/infra/fsx"
)

// XMLStore 把每条记录存成 <dir>/<key>.xml。
type XMLStore struct {
	Dir      string
	ReadOnly bool
}

func OpenXML(dir string, readOnly bool) (*XMLStore, error) {
	s := &XMLStore{Dir: filepath.Clean(dir), ReadOnly: readOnly}
	if !readOnly {
		// 上次运行被中断时可能留下临时文件；它们从未被 rename，删掉即可。
		if _, err := fsx.RemoveStaleTemps(s.Dir); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *XMLStore) Path(key string) string {
	return filepath.Join(s.Dir, key+".xml")
}

func (s *XMLStore) Load(_ context.Context, key string) (Snapshot, bool, error) {
	if err := checkKey(key); err != nil {
		return Snapshot{}, false, err
	}
	b, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := xml.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, false, &CorruptError{Key: key, Err: err}
	}
	if snap.Key != key {
		return Snapshot{}, false, &CorruptError{Key: key, Err: fmt.Errorf("快照 key 不一致：%q", snap.Key)}
	}
	return snap, true, nil
}

func (s *XMLStore) Save(ctx context.Context, snap Snapshot) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if err := checkKey(snap.Key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := xml.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return fsx.WriteFileAtomic(s.Dir, snap.Key+".xml", buf.Bytes())
}

func (s *XMLStore) Close() error { return nil }

// Keys 列出目录下全部快照 key（按文件名排序）。
func (s *XMLStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".xml" || name[0] == '.' {
			continue
		}
		out = append(out, name[:len(name)-len(".xml")])
	}
	return out, nil
}
