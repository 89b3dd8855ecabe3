package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/harunnryd/bluservice/internal/logger"
)

// SafeGo runs fn in its own goroutine under the given routine name. A panic is
// logged with the request ids carried by ctx and then passed to onPanic, if set.
func SafeGo(ctx context.Context, name string, fn func(), onPanic func(any)) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			attrs := append([]any{"routine", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack())}, logger.Attrs(ctx)...)
			slog.Error("Panic recovered", attrs...)
			if onPanic != nil {
				onPanic(r)
			}
		}()
		fn()
	}()
}
