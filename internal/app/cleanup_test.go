package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls int
	n     int64
	err   error
}

func (f *fakePurger) CleanupOldData(ctx context.Context) (int64, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}
	return f.n, f.err
}

func TestScheduleCleanup(t *testing.T) {
	t.Parallel()

	p := &fakePurger{n: 3}
	c, err := ScheduleCleanup("0 3 * * *", p, time.Second)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	c.Entries()[0].Job.Run()
	assert.Equal(t, 1, p.calls)

	_, err = ScheduleCleanup("every tuesday", p, time.Second)
	assert.Error(t, err)
}

func TestRunCleanup_ErrorIsLogged(t *testing.T) {
	t.Parallel()

	p := &fakePurger{err: errors.New("db down")}
	runCleanup(p, 0)
	assert.Equal(t, 1, p.calls)
}
