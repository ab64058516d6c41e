package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// librariesFile 是 libraries_file 指向的 YAML：
//
//	libraries:
//	  - path: /mnt/movies
//	    exclude: [samples, extras]
//	  - path: ../tv
type librariesFile struct {
	Libraries []struct {
		Path    string   `yaml:"path"`
		Exclude []string `yaml:"exclude"`
	} `yaml:"libraries"`
}

// ReadLibraries 读取额外的扫描根；相对路径以该文件所在目录为基准。
func ReadLibraries(path string) ([]Library, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf librariesFile
	if err := yaml.Unmarshal(b, &lf); err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}
	base := filepath.Dir(path)
	out := make([]Library, 0, len(lf.Libraries))
	for i, l := range lf.Libraries {
		if strings.TrimSpace(l.Path) == "" {
			return nil, fmt.Errorf("libraries[%d].path 不能为空", i)
		}
		out = append(out, Library{
			Path:    absCleanFrom(base, l.Path),
			Exclude: cleanList(l.Exclude),
		})
	}
	return out, nil
}
