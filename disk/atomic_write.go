package disk

import "github.com/tiercache/tiercache/vfs"

// atomicWrite stages data in a uniquely named file under tempDir, then
// renames it into place at destPath. Either the old destPath contents or
// the new data are observable afterward — never a partial write — because
// the rename is the only step that touches destPath.
func atomicWrite(fs vfs.FS, tempDir, destPath string, data []byte) error {
	tmp, err := fs.TempFile(tempDir, "*.tmp")
	if err != nil {
		return err
	}
	if err := fs.WriteFile(tmp, data); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	if err := fs.Rename(tmp, destPath); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	return nil
}
