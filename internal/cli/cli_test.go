package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
	"github.com/ariefcatur/go-retail-orders/internal/redisx"
	"github.com/ariefcatur/go-retail-orders/internal/tasks"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTaskCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("LOG_LEVEL", "error")

	rdb := redisx.New(mr.Addr())
	defer rdb.Close()
	store := tasks.NewStatusStore(rdb, 0)
	require.NoError(t, store.Put(context.Background(), tasks.Status{
		TaskID: "t-1", Kind: tasks.KindImportPriceList, State: tasks.StateFailed, Error: "fetch failed",
	}))

	out, err := run(t, "task", "t-1")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "failed"`)
	assert.Contains(t, out, `"error": "fetch failed"`)

	_, err = run(t, "task", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestImportCommand_RejectsBadURL(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	_, err := run(t, "import", "--partner", "1", "--url", "not a url")
	assert.ErrorIs(t, err, pricelist.ErrInvalidURL)
}
