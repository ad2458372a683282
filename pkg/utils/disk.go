package utils

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsageBytes sums the on-disk size of the given files and directories
// (directories recursively). Empty and missing paths contribute zero; any
// other stat or walk failure aborts the sum.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func pathSize(path string) (int64, error) {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return 0, nil
	case err != nil:
		return 0, err
	case !info.IsDir():
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fi, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
