package optimise

import (
	"fmt"
	"math"

	"mocat/internal/backtest"
)

// AxisKind 标识参数轴的取值形态。
type AxisKind string

const (
	// KindCategorical 为自由枚举列表，元素可以是字符串或数值。
	KindCategorical AxisKind = "categorical"
	// KindIntRange 为整数区间加步长。
	KindIntRange AxisKind = "int_range"
	// KindFloatRange 为浮点区间加步长。
	KindFloatRange AxisKind = "float_range"
)

// Axis 为一条命名参数轴。
type Axis struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	Kind    AxisKind `mapstructure:"kind" yaml:"kind"`
	Choices []any    `mapstructure:"choices" yaml:"choices"`
	Min     float64  `mapstructure:"min" yaml:"min"`
	Max     float64  `mapstructure:"max" yaml:"max"`
	Step    float64  `mapstructure:"step" yaml:"step"`
}

// Candidates 展开轴上全部候选值。区间轴从 Min 起按 Step 递增，
// 包含不超过 Max 的所有值。
func (a Axis) Candidates() []any {
	switch a.Kind {
	case KindCategorical:
		return append([]any(nil), a.Choices...)
	case KindIntRange:
		var out []any
		step := int(a.Step)
		if step <= 0 {
			step = 1
		}
		for v := int(a.Min); v <= int(a.Max); v += step {
			out = append(out, v)
		}
		return out
	case KindFloatRange:
		var out []any
		if a.Step <= 0 {
			return out
		}
		for v := a.Min; v <= a.Max+a.Step/2; v += a.Step {
			out = append(out, v)
		}
		return out
	default:
		return nil
	}
}

// Snap 把连续值折回轴上最近的合法候选。连续搜索引擎用它把
// 实数向量映射回离散参数。
func (a Axis) Snap(v float64) any {
	switch a.Kind {
	case KindCategorical:
		if len(a.Choices) == 0 {
			return nil
		}
		idx := int(math.Round(v))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(a.Choices) {
			idx = len(a.Choices) - 1
		}
		return a.Choices[idx]
	case KindIntRange:
		step := a.Step
		if step <= 0 {
			step = 1
		}
		snapped := a.Min + math.Round((v-a.Min)/step)*step
		snapped = math.Max(a.Min, math.Min(a.Max, snapped))
		return int(snapped)
	case KindFloatRange:
		step := a.Step
		if step <= 0 {
			return math.Max(a.Min, math.Min(a.Max, v))
		}
		snapped := a.Min + math.Round((v-a.Min)/step)*step
		return math.Max(a.Min, math.Min(a.Max, snapped))
	default:
		return nil
	}
}

// Bounds 返回连续搜索引擎使用的区间。枚举轴按下标空间处理。
func (a Axis) Bounds() (lo, hi float64) {
	if a.Kind == KindCategorical {
		return 0, float64(len(a.Choices) - 1)
	}
	return a.Min, a.Max
}

func (a Axis) validate() error {
	switch a.Kind {
	case KindCategorical:
		if len(a.Choices) == 0 {
			return fmt.Errorf("%w: 轴 %s 没有候选值", backtest.ErrInvalidConfig, a.Name)
		}
	case KindIntRange, KindFloatRange:
		if a.Max < a.Min {
			return fmt.Errorf("%w: 轴 %s 区间上界小于下界", backtest.ErrInvalidConfig, a.Name)
		}
		if a.Step <= 0 {
			return fmt.Errorf("%w: 轴 %s 步长必须为正", backtest.ErrInvalidConfig, a.Name)
		}
	default:
		return fmt.Errorf("%w: 轴 %s 类型 %q 未知", backtest.ErrInvalidConfig, a.Name, a.Kind)
	}
	return nil
}

// Space 为有序的参数轴集合。
type Space []Axis

func (s Space) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: 搜索空间为空", backtest.ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(s))
	for _, axis := range s {
		if axis.Name == "" {
			return fmt.Errorf("%w: 搜索空间有未命名的轴", backtest.ErrInvalidConfig)
		}
		if _, dup := seen[axis.Name]; dup {
			return fmt.Errorf("%w: 轴 %s 重复", backtest.ErrInvalidConfig, axis.Name)
		}
		seen[axis.Name] = struct{}{}
		if err := axis.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Combinations 返回全空间的组合数。
func (s Space) Combinations() int {
	total := 1
	for _, axis := range s {
		total *= len(axis.Candidates())
	}
	return total
}

// Assignment 是一次完整的参数赋值，键为轴名。
type Assignment map[string]any

// Clone 返回独立副本。
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Float 取数值参数，int 与 float64 均可。
func (a Assignment) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("%w: 缺少参数 %s", backtest.ErrInvalidConfig, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: 参数 %s 不是数值: %T", backtest.ErrInvalidConfig, key, v)
	}
}

// Int 取整数参数。
func (a Assignment) Int(key string) (int, error) {
	f, err := a.Float(key)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// String 取字符串参数。
func (a Assignment) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("%w: 缺少参数 %s", backtest.ErrInvalidConfig, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: 参数 %s 不是字符串: %T", backtest.ErrInvalidConfig, key, v)
	}
	return s, nil
}
