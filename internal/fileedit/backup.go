package fileedit

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
)

// BackupSuffix is appended to the hidden backup of an edited file.
const BackupSuffix = ".sa.backup"

// BackupPath returns the backup location for path: the basename
// prefixed with a dot and suffixed with BackupSuffix, in the same
// directory.
func BackupPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+BackupSuffix)
}

// Backup copies path to BackupPath(path) unless a backup already exists.
// It returns the backup path and whether it was created by this call.
// The copy keeps the file mode and modification time.
func Backup(path string) (string, bool, error) {
	backup := BackupPath(path)
	if _, err := os.Lstat(backup); err == nil {
		return backup, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, srerrors.EditError(srerrors.ErrCodeEditBackup, path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", false, srerrors.EditError(srerrors.ErrCodeEditBackup, path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, srerrors.EditError(srerrors.ErrCodeEditBackup, path, err)
	}
	if err := renameio.WriteFile(backup, data, info.Mode().Perm()); err != nil {
		return "", false, srerrors.EditError(srerrors.ErrCodeEditBackup, path, err)
	}
	_ = os.Chtimes(backup, info.ModTime(), info.ModTime())
	return backup, true, nil
}
