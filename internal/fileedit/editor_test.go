package fileedit

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

const sysconfigKdump = `# Kernel Version string for the -kdump kernel
KDUMP_KERNELVER=""
KDUMP_COMMANDLINE=""
KDUMP_COMMANDLINE_REMOVE="hugepages hugepagesz slub_debug"
# This variable lets us append arguments to the current kdump commandline
KDUMP_COMMANDLINE_APPEND="irqpoll nr_cpus=1 reset_devices"
KEXEC_ARGS="-s"
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kdump")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "/etc/default/.grub.sa.backup", BackupPath("/etc/default/grub"))
	assert.Equal(t, "/etc/sysconfig/.kdump.sa.backup", BackupPath("/etc/sysconfig/kdump"))
}

func TestEdit_RoundTripReplacesOneLine(t *testing.T) {
	// Given: a file with N lines where exactly one assigns the key
	path := writeFile(t, sysconfigKdump)
	before := strings.Split(strings.TrimSuffix(sysconfigKdump, "\n"), "\n")

	// When: setting the key
	changed, err := New().Edit(path, SetKeyValue("KEXEC_ARGS", `"-s --dt-no-old-root"`))

	// Then: N lines, only the key line differs, value is the corrected one
	require.NoError(t, err)
	assert.True(t, changed)
	after := strings.Split(strings.TrimSuffix(readFile(t, path), "\n"), "\n")
	require.Len(t, after, len(before))
	for i := range before {
		if strings.HasPrefix(before[i], "KEXEC_ARGS=") {
			assert.Equal(t, `KEXEC_ARGS="-s --dt-no-old-root"`, after[i])
			continue
		}
		assert.Equal(t, before[i], after[i])
	}
	value, ok := ValueOf(after, "KEXEC_ARGS")
	assert.True(t, ok)
	assert.Equal(t, "-s --dt-no-old-root", value)
}

func TestEdit_RoundTripAppendsAbsentKey(t *testing.T) {
	path := writeFile(t, sysconfigKdump)

	changed, err := New().Edit(path, SetKeyValue("KDUMP_FADUMP", `"yes"`))

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, sysconfigKdump+`KDUMP_FADUMP="yes"`+"\n", readFile(t, path))
}

func TestEdit_NoTrailingNewlinePreserved(t *testing.T) {
	path := writeFile(t, "A=1\nB=2")

	_, err := New().Edit(path, SetKeyValue("A", "3"))
	require.NoError(t, err)
	assert.Equal(t, "A=3\nB=2", readFile(t, path))

	_, err = New().Edit(path, SetKeyValue("C", "4"))
	require.NoError(t, err)
	assert.Equal(t, "A=3\nB=2\nC=4\n", readFile(t, path))
}

func TestEdit_NoChangeWritesNothing(t *testing.T) {
	path := writeFile(t, "KEXEC_ARGS=\"-s\"\n")

	changed, err := New().Edit(path, SetKeyValue("KEXEC_ARGS", `"-s"`))

	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoFileExists(t, BackupPath(path))
}

func TestEdit_BackupCreatedOnceAndNeverOverwritten(t *testing.T) {
	// Given: a file edited once
	path := writeFile(t, sysconfigKdump)
	_, err := New().Edit(path, SetKeyValue("KEXEC_ARGS", `"-s -d"`))
	require.NoError(t, err)

	// Then: the backup equals the pre-edit content and keeps the mode
	assert.Equal(t, sysconfigKdump, readFile(t, BackupPath(path)))
	info, err := os.Stat(BackupPath(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	// When: editing again
	_, err = New().Edit(path, SetKeyValue("KEXEC_ARGS", `"-s -d -x"`))
	require.NoError(t, err)

	// Then: the first backup is untouched
	assert.Equal(t, sysconfigKdump, readFile(t, BackupPath(path)))
}

func TestEdit_FailedReplaceRestoresBackup(t *testing.T) {
	// Given: a replace primitive that corrupts the target and then fails
	path := writeFile(t, sysconfigKdump)
	var warnings bytes.Buffer
	ed := New(
		WithWarnings(&warnings),
		WithReplace(func(p string, _ []byte, _ os.FileMode) error {
			_ = os.WriteFile(p, []byte("KEXEC_AR"), 0o640)
			return errors.New("rename: input/output error")
		}),
	)

	// When: editing
	changed, err := ed.Edit(path, SetKeyValue("KEXEC_ARGS", `"-d"`))

	// Then: the original content is back, the backup holds the pre-edit
	// content and the operator got a critical warning
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, srerrors.ErrCodeEditReplace, srerrors.GetCode(err))
	assert.True(t, srerrors.IsCritical(err))
	assert.Equal(t, sysconfigKdump, readFile(t, path))
	assert.Equal(t, sysconfigKdump, readFile(t, BackupPath(path)))
	assert.Contains(t, warnings.String(), "CRITICAL")
}

func TestEdit_FailedReplaceLeavesUntouchedOriginal(t *testing.T) {
	path := writeFile(t, sysconfigKdump)
	ed := New(
		WithWarnings(&bytes.Buffer{}),
		WithReplace(func(string, []byte, os.FileMode) error { return errors.New("no space left on device") }),
	)

	_, err := ed.Edit(path, SetKeyValue("KEXEC_ARGS", `"-d"`))

	require.Error(t, err)
	assert.Equal(t, sysconfigKdump, readFile(t, path))
	assert.Equal(t, sysconfigKdump, readFile(t, BackupPath(path)))
}

func TestEdit_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vfio-pci.conf")

	changed, err := New().Edit(path, AppendMissing("vfio-pci", "vfio_iommu_spapr_tce"))

	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "vfio-pci\nvfio_iommu_spapr_tce\n", readFile(t, path))
	assert.NoFileExists(t, BackupPath(path))
}

func TestAppendMissing(t *testing.T) {
	lines, changed := AppendMissing("vfio-pci", "vfio_iommu_spapr_tce")([]string{"# modules", "  vfio-pci  "})

	assert.True(t, changed)
	assert.Equal(t, []string{"# modules", "  vfio-pci  ", "vfio_iommu_spapr_tce"}, lines)

	_, changed = AppendMissing("vfio-pci")([]string{"vfio-pci"})
	assert.False(t, changed)
}

func TestSetKeyValue_IgnoresComments(t *testing.T) {
	lines, changed := SetKeyValue("KDUMP_FADUMP", `"yes"`)([]string{`#KDUMP_FADUMP="no"`})

	assert.True(t, changed)
	assert.Equal(t, []string{`#KDUMP_FADUMP="no"`, `KDUMP_FADUMP="yes"`}, lines)
}

func TestValueOfAndUnquote(t *testing.T) {
	lines := []string{`A="one"`, `# A="two"`, `B='x'`, `A=three`}

	v, ok := ValueOf(lines, "A")
	assert.True(t, ok)
	assert.Equal(t, "three", v)

	v, _ = ValueOf(lines, "B")
	assert.Equal(t, "x", v)

	_, ok = ValueOf(lines, "C")
	assert.False(t, ok)
	assert.Equal(t, `"`, Unquote(`"`))
}
