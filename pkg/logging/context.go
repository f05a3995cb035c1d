package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// TxField tags a log entry with a transaction id.
func TxField(tid fmt.Stringer) zap.Field {
	return zap.Stringer("tx_id", tid)
}

// PageField tags a log entry with a page id.
func PageField(pid fmt.Stringer) zap.Field {
	return zap.Stringer("page_id", pid)
}

// WithTx creates a logger with transaction context.
//
// Example:
//
//	log := logging.WithTx(tid)
//	log.Info("committing", zap.Int("dirty_pages", n))
func WithTx(tid fmt.Stringer) *zap.Logger {
	return GetLogger().With(TxField(tid))
}

// WithTable creates a logger with table context.
func WithTable(table fmt.Stringer) *zap.Logger {
	return GetLogger().With(zap.Stringer("table", table))
}

// WithPage creates a logger with page context. Useful for buffer pool and
// storage operations.
func WithPage(pid fmt.Stringer) *zap.Logger {
	return GetLogger().With(PageField(pid))
}

// WithLock creates a logger with lock context.
func WithLock(tid fmt.Stringer, pid fmt.Stringer) *zap.Logger {
	return GetLogger().With(TxField(tid), PageField(pid))
}

// WithComponent creates a logger with component/subsystem context.
func WithComponent(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

// WithError creates a logger carrying an error.
func WithError(err error) *zap.Logger {
	return GetLogger().With(zap.Error(err))
}
