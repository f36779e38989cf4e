package crawlers

import "sync"

// Frontier 待爬队列与已访问集合
// 队列为FIFO;queued集合用于抑制重复入队,出队时仍需再次检查visited
type Frontier struct {
	pending []string
	queued  map[string]bool
	visited map[string]bool
	order   []string // 访问顺序

	mu sync.RWMutex
}

// NewFrontier 创建队列
func NewFrontier() *Frontier {
	return &Frontier{
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
}

// Push 入队
// 已访问或已在队列中时返回false
func (f *Frontier) Push(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[u] || f.queued[u] {
		return false
	}
	f.pending = append(f.pending, u)
	f.queued[u] = true
	return true
}

// Pop 取出队首
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return "", false
	}
	u := f.pending[0]
	f.pending[0] = ""
	f.pending = f.pending[1:]
	delete(f.queued, u)
	return u, true
}

// MarkVisited 标记为已访问,重复标记无效果
func (f *Frontier) MarkVisited(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[u] {
		return
	}
	f.visited[u] = true
	f.order = append(f.order, u)
}

// IsVisited 是否已访问
func (f *Frontier) IsVisited(u string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.visited[u]
}

// VisitedCount 已访问数量
func (f *Frontier) VisitedCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.visited)
}

// PendingCount 待处理数量
func (f *Frontier) PendingCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.pending)
}

// Visited 按访问顺序返回已访问URL的副本
func (f *Frontier) Visited() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}
