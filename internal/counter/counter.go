package counter

import "sync"

// Daily 统计当日已成功下单数量，所有变更在互斥锁下进行，计数永不为负。
type Daily struct {
	mu    sync.Mutex
	max   int
	count int
}

// New 创建日度计数器，max 为每日最大下单数。
func New(max int) *Daily {
	return &Daily{max: max}
}

// Increment 在下单确认成功后调用，返回最新计数。
func (d *Daily) Increment() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	return d.count
}

// Decrement 在撤销挂单后回收额度，计数下限为零，返回最新计数。
func (d *Daily) Decrement(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count -= n
	if d.count < 0 {
		d.count = 0
	}
	return d.count
}

// Reset 将计数清零，返回清零后的计数。
func (d *Daily) Reset() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count = 0
	return d.count
}

// Count 返回当前计数。
func (d *Daily) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Max 返回每日上限。
func (d *Daily) Max() int {
	return d.max
}

// Remaining 返回当日剩余额度，下限为零。
func (d *Daily) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	left := d.max - d.count
	if left < 0 {
		left = 0
	}
	return left
}
