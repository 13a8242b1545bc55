// Package clock 时间抽象
//
// 生产代码注入 Real()，测试注入 NewFake() 以获得确定性的时间推进。
// 需要延时回调的组件（如申请自动推进模拟）只依赖 Clock 接口。
package clock

import "time"

// Clock 时间操作接口
type Clock interface {
	// Now 当前时间
	Now() time.Time
	// AfterFunc 在 d 之后调用 f，返回可取消的 Timer
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 已安排的回调
type Timer interface {
	// Stop 取消尚未触发的回调，已触发或已取消时返回 false
	Stop() bool
}

// Real 返回基于 time 包的真实时钟
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
