package chain

import (
	"sync"

	"github.com/rs/zerolog"
	"zliu.org/goutil/rest"
)

var (
	zlog *zerolog.Logger
	once sync.Once
)

// GetZlog returns the package logger, initializing it on first use.
func GetZlog() *zerolog.Logger {
	once.Do(func() {
		zlog = rest.Log()
	})
	return zlog
}
