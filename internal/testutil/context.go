package testutil

import (
	"context"
	"testing"
)

// ContextWithCancel создаёт context с cancel и автоматически отменяет его при завершении теста.
func ContextWithCancel(t testing.TB) (context.Context, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return ctx, cancel
}

// CanceledContext возвращает уже отменённый context.
func CanceledContext(t testing.TB) context.Context {
	t.Helper()

	ctx, cancel := ContextWithCancel(t)
	cancel()
	return ctx
}
