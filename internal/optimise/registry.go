package optimise

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mocat/internal/logger"
)

// spaceFileSchema 约束搜索空间文件的结构，加载时先过一遍校验，
// 再做强类型解码。
const spaceFileSchema = `{
  "type": "object",
  "required": ["axes"],
  "properties": {
    "engine": {"type": "string"},
    "workers": {"type": "integer", "minimum": 0},
    "axes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "kind"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "kind": {"enum": ["categorical", "int_range", "float_range"]},
          "choices": {"type": "array"},
          "min": {"type": "number"},
          "max": {"type": "number"},
          "step": {"type": "number"}
        }
      }
    }
  }
}`

// SpaceFile 映射搜索空间 YAML 文件。
type SpaceFile struct {
	Engine  string `mapstructure:"engine" yaml:"engine"`
	Workers int    `mapstructure:"workers" yaml:"workers"`
	Axes    []Axis `mapstructure:"axes" yaml:"axes"`
}

// Snapshot 为某一时刻加载的搜索空间。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Engine   string
	Workers  int
	Space    Space
}

// Registry 管理搜索空间文件，文件变化时自动重载，跑批间隔里改
// 参数不用重启进程。
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry 读取搜索空间文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("search space registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read search space file failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("search space reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前搜索空间。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.snapshot
	snap.Space = append(Space(nil), r.snapshot.Space...)
	return snap
}

func (r *Registry) reload() error {
	file, err := readSpaceFile(r.path)
	if err != nil {
		return err
	}
	space := Space(file.Axes)
	if err := space.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Engine:   file.Engine,
		Workers:  file.Workers,
		Space:    space,
	}
	r.mu.Unlock()
	logger.Infof("搜索空间已加载: %d 条轴, 来自 %s", len(space), filepath.Base(r.path))
	return nil
}

func readSpaceFile(path string) (SpaceFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SpaceFile{}, fmt.Errorf("read search space file failed: %w", err)
	}
	if err := validateSpaceFile(raw); err != nil {
		return SpaceFile{}, fmt.Errorf("search space file %s: %w", path, err)
	}
	var file SpaceFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return SpaceFile{}, fmt.Errorf("parse search space file failed: %w", err)
	}
	return file, nil
}

func validateSpaceFile(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("space.json", strings.NewReader(spaceFileSchema)); err != nil {
		return err
	}
	schema, err := compiler.Compile("space.json")
	if err != nil {
		return err
	}
	return schema.Validate(normaliseYAML(doc))
}

// normaliseYAML 把 yaml 解出的 map[any]any 转成 jsonschema 认识
// 的 map[string]any。
func normaliseYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprintf("%v", k)] = normaliseYAML(child)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normaliseYAML(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normaliseYAML(child)
		}
		return out
	case int:
		return float64(val)
	default:
		return v
	}
}
