package confmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

func NewLocal(dir string) (ConfigManager, error) {
	return &localMgr{
		dir: dir,
	}, nil
}

type localMgr struct {
	dir string
}

func (lm *localMgr) Path(key string) string {
	return filepath.Join(lm.dir, fmt.Sprintf("%s.cfg", key))
}

func (lm *localMgr) SetDefault(_ context.Context, key string, c any) error {
	fname := lm.Path(key)
	_, err := os.Stat(fname)
	if err == nil {
		return fmt.Errorf("%s already exits", fname)
	}

	if !os.IsNotExist(err) {
		return fmt.Errorf("stat file %s: %w", fname, err)
	}

	content, err := ConfigComment(c)
	if err != nil {
		return fmt.Errorf("marshal default content: %w", err)
	}

	log.Infow("write default config", "file", fname)
	return os.WriteFile(fname, content, 0644)
}

func (lm *localMgr) Load(_ context.Context, key string, c any) error {
	fname := lm.Path(key)
	data, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", fname, err)
	}

	return lm.unmarshal(data, c)
}

func (lm *localMgr) unmarshal(data []byte, obj any) error {
	if un, ok := obj.(ConfigUnmarshaller); ok {
		return un.UnmarshalConfig(data)
	}

	md, err := toml.Decode(string(data), obj)
	if err != nil {
		return err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warnw("unknown config keys ignored", "keys", undecoded)
	}

	return nil
}
