package config

import (
	"context"
	"path/filepath"

	yaml "github.com/goccy/go-yaml"
)

// CfgPath is a path in the config file. Relative paths are taken relative
// to the directory of the config file.
type CfgPath string

type baseDirKey struct{}

// WithBaseDir returns a decode context resolving relative CfgPaths
// against dir
func WithBaseDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, baseDirKey{}, dir)
}

func baseDir(ctx context.Context) string {
	dir, _ := ctx.Value(baseDirKey{}).(string)
	return dir
}

func (c *CfgPath) UnmarshalYAML(ctx context.Context, b []byte) error {
	var path string
	err := yaml.UnmarshalContext(ctx, b, &path)
	if err != nil {
		return err
	}

	if path == "" || filepath.IsAbs(path) {
		*c = CfgPath(path)
	} else {
		*c = CfgPath(filepath.Join(baseDir(ctx), path))
	}
	return nil
}
