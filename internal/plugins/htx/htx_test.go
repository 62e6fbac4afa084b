package htx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/servicereport/internal/check"
	"github.com/Aman-CERP/servicereport/internal/host/hosttest"
	"github.com/Aman-CERP/servicereport/internal/plugin"
)

func validated(t *testing.T, files map[string]string, r *hosttest.Runner) *plugin.Instance {
	t.Helper()
	env := plugin.Env{Host: hosttest.New(t, files, r)}
	inst := plugin.NewInstance(Definitions()[0], env)
	inst.Validate(context.Background())
	return inst
}

func TestHTX(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		active  bool
		path    check.Status
		service check.Status
	}{
		{
			name:    "installed and running",
			files:   map[string]string{installFile: "/usr/lpp/htx\n", "/usr/lpp/htx/": ""},
			active:  true,
			path:    check.StatusPass,
			service: check.StatusPass,
		},
		{
			name:    "install path file missing",
			files:   nil,
			active:  false,
			path:    check.StatusFail,
			service: check.StatusFail,
		},
		{
			name:    "recorded directory removed",
			files:   map[string]string{installFile: "/usr/lpp/htx\n"},
			active:  true,
			path:    check.StatusFail,
			service: check.StatusPass,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := hosttest.NewRunner().On("systemctl is-enabled htxd", hosttest.OK("enabled"))
			if tt.active {
				r.On("systemctl is-active htxd", hosttest.OK("active"))
			} else {
				r.On("systemctl is-active htxd", hosttest.Exit(3))
			}

			inst := validated(t, tt.files, r)

			require.Len(t, inst.Records(), 2)
			assert.Equal(t, tt.path, inst.Record("install-path").Status)
			assert.Equal(t, tt.service, inst.Record("service").Status)
		})
	}
}

func TestDefinition_IsOptional(t *testing.T) {
	def := Definitions()[0]
	assert.True(t, def.Optional)
	assert.Equal(t, Name, def.LogicalName())
}
