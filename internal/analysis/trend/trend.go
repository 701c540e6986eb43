package trend

import (
	"errors"
	"sort"
	"time"
)

// ErrShortWindow 表示样本不足以拟合趋势线。
var ErrShortWindow = errors.New("样本不足，无法拟合趋势线")

// Line 为最小二乘拟合出的趋势线，x 轴取 0..n-1。
type Line struct {
	Slope     float64
	Intercept float64
	// Variance 为残差平方的均值，衡量拟合质量。
	Variance float64
}

// Fit 对数值序列做一元最小二乘回归。
func Fit(values []float64) (Line, error) {
	n := len(values)
	if n < 2 {
		return Line{}, ErrShortWindow
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Line{}, ErrShortWindow
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	var ss float64
	for i, y := range values {
		r := y - (slope*float64(i) + intercept)
		ss += r * r
	}
	return Line{Slope: slope, Intercept: intercept, Variance: ss / fn}, nil
}

// WindowStart 返回回看窗口的起始下标：时间戳不早于
// ts[i] 减 window 的第一个位置。ts 必须按时间升序。
func WindowStart(ts []time.Time, i int, window time.Duration) int {
	cutoff := ts[i].Add(-window)
	return sort.Search(i+1, func(j int) bool {
		return !ts[j].Before(cutoff)
	})
}
