package plugins

import (
	"testing"

	"github.com/MrWalshy/emdd"
	"github.com/stretchr/testify/require"
)

func transpile(t *testing.T, src string, plugins ...string) *emdd.Result {
	t.Helper()
	res, err := transpileErr(t, src, plugins...)
	require.NoError(t, err)
	return res
}

func transpileErr(t *testing.T, src string, plugins ...string) (*emdd.Result, error) {
	t.Helper()
	tr, err := NewPipeline(PipelineConfig{Plugins: plugins})
	require.NoError(t, err)
	return tr.TranspileString(src, nil)
}
