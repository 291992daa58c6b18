package confmgr

import (
	"bytes"
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/padme-experiment/padme-cdr/pkg/logging"
)

var log = logging.New("confmgr")

var _ ConfigManager = (*localMgr)(nil)

type ConfigUnmarshaller interface {
	UnmarshalConfig([]byte) error
}

type CommentAll interface {
	CommentAllInExample()
}

type ConfigManager interface {
	Load(ctx context.Context, key string, c any) error
	SetDefault(ctx context.Context, key string, c any) error
	Path(key string) string
}

// ConfigComment renders t as TOML with every line commented out. Table headers stay
// active unless t implements CommentAll.
func ConfigComment(t any) ([]byte, error) {
	var encoded bytes.Buffer
	enc := toml.NewEncoder(&encoded)
	enc.Indent = ""
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	_, commentAll := t.(CommentAll)

	out := bytes.NewBufferString("# Default config, uncomment a line to override it:\n")
	for _, line := range bytes.Split(encoded.Bytes(), []byte("\n")) {
		if !commentAll && bytes.HasPrefix(line, []byte("[")) {
			out.Write(line)
		} else {
			out.WriteString("#")
			out.Write(line)
		}
		out.WriteByte('\n')
	}

	return out.Bytes(), nil
}
