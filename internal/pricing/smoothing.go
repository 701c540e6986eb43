package pricing

import (
	"fmt"
	"strings"
)

// DefaultSmoothing 是标准 EMA 的平滑常数 K（α = K/(period+1)）。
// 源头策略把它当可调参数而不是写死的 2，这里保持同样的自由度。
const DefaultSmoothing = 2.0

// Method 为平滑方式：简单均线或指数均线。
type Method string

const (
	Simple      Method = "simple"
	Exponential Method = "exponential"
)

// ParseMethod 返回标准化平滑方式。
func ParseMethod(input string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case string(Simple):
		return Simple, nil
	case string(Exponential):
		return Exponential, nil
	default:
		return "", fmt.Errorf("未知平滑方式: %q", input)
	}
}

// SMA 计算窗口为 period 的简单移动均线。前 period-1 个位置
// 直接透传原始输入（热身段），其后为尾窗均值；窗口和用滚动
// 方式维护，整体 O(n)。
func SMA(in []float64, period int) ([]float64, error) {
	if err := checkWindow(len(in), period); err != nil {
		return nil, err
	}
	out := make([]float64, len(in))
	sum := 0.0
	for i, v := range in {
		sum += v
		if i < period-1 {
			out[i] = v
			continue
		}
		if i >= period {
			sum -= in[i-period]
		}
		out[i] = sum / float64(period)
	}
	return out, nil
}

// EMA 计算指数移动均线：首值取前 period 个输入的简单平均，
// 其后按 ema[i] = α·x[i] + (1−α)·ema[i−1] 递推，α = smoothing/(period+1)。
func EMA(in []float64, period int, smoothing float64) ([]float64, error) {
	if err := checkWindow(len(in), period); err != nil {
		return nil, err
	}
	if smoothing <= 0 {
		smoothing = DefaultSmoothing
	}
	out := make([]float64, len(in))
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += in[i]
	}
	out[0] = seed / float64(period)

	alpha := smoothing / float64(period+1)
	for i := 1; i < len(in); i++ {
		out[i] = alpha*in[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

func smooth(method Method, in []float64, period int, smoothing float64) ([]float64, error) {
	switch method {
	case Simple:
		return SMA(in, period)
	case Exponential:
		return EMA(in, period, smoothing)
	default:
		return nil, fmt.Errorf("未知平滑方式: %q", method)
	}
}

func checkWindow(n, period int) error {
	if n == 0 {
		return ErrEmptySeries
	}
	if period <= 0 {
		return fmt.Errorf("period 需 > 0，收到 %d", period)
	}
	if period > n {
		return fmt.Errorf("period %d 超过序列长度 %d", period, n)
	}
	return nil
}
