// Package timeout defines centralized timeout constants for chat turns.
// Package timeout 定义对话轮次的集中式超时常量。
package timeout

import "time"

// Turn timeout constants. The orchestrator itself never sets deadlines; these
// are applied by the server and the CLI at the transport boundary.
const (
	// TurnTimeout bounds a whole turn: both model calls and the function execution.
	// TurnTimeout 是单轮对话（两次模型调用加一次函数执行）的超时时间。
	TurnTimeout = 2 * time.Minute

	// FunctionTimeout bounds a single registered function call.
	// FunctionTimeout 是单个函数调用的超时时间。
	FunctionTimeout = 30 * time.Second

	// HTTPClientTimeout bounds a single request from a DevOps backend client.
	HTTPClientTimeout = 15 * time.Second

	// ShutdownTimeout is how long the server waits for in-flight turns on shutdown.
	// ShutdownTimeout 是服务关闭时等待进行中请求的时间。
	ShutdownTimeout = 10 * time.Second

	// SessionCleanupInterval is how often idle sessions are evicted.
	SessionCleanupInterval = 5 * time.Minute

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	// MaxTruncateLength 是日志中字符串截断的最大长度。
	MaxTruncateLength = 200
)
