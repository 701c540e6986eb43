package optimise

import (
	"sync"
	"sync/atomic"

	"mocat/internal/logger"
)

// Coordinator 持有搜索过程的全部共享状态：最优候选、未完成任务
// 计数和取消标志。所有引擎的并发评估都通过它汇合。
type Coordinator struct {
	mu   sync.Mutex
	best *Candidate

	pending sync.WaitGroup
	stopped atomic.Bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Offer 用候选挑战当前最优。比较与替换都在锁内完成，候选先被
// 深拷贝，协调器里的最优从不引用仍在被 worker 修改的对象。
// 成功率严格更高才替换，持平保留现任。没有交易的候选不参与比较。
func (c *Coordinator) Offer(cand *Candidate) bool {
	metric, ok := cand.Metric()
	if !ok {
		return false
	}

	owned := cand.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.best == nil {
		c.best = owned
		logger.Infof("首个候选: success_rate=%.2f cost=%.2f", metric, owned.Cost)
		return true
	}
	incumbent, _ := c.best.Metric()
	if metric > incumbent {
		c.best = owned
		logger.Infof("更优候选: success_rate=%.2f cost=%.2f", metric, owned.Cost)
		return true
	}
	return false
}

// Best 返回当前最优候选的独立副本。
func (c *Coordinator) Best() *Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.best.Clone()
}

// Add 登记即将派发的任务数。
func (c *Coordinator) Add(delta int) {
	c.pending.Add(delta)
}

// Done 标记一个任务完成。
func (c *Coordinator) Done() {
	c.pending.Done()
}

// Wait 阻塞到所有已派发任务完成。
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Cancel 置取消标志。派发循环在创建新任务前检查该标志，已经在
// 跑的任务照常跑完，其结果仍可参与竞争。
func (c *Coordinator) Cancel() {
	c.stopped.Store(true)
}

// Cancelled 报告是否已请求取消。
func (c *Coordinator) Cancelled() bool {
	return c.stopped.Load()
}
