package utils

import "path/filepath"

// GetPathInfo resolves relPath to an absolute path and splits it into the
// root of its volume and the slash-separated name below that root, the form
// an fs.FS opened at root expects.
func GetPathInfo(relPath string) (fullPath, root, name string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", "", err
	}

	root = filepath.VolumeName(fullPath) + string(filepath.Separator)
	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return "", "", "", err
	}
	return fullPath, root, filepath.ToSlash(rel), nil
}

// HostPath is the inverse of GetPathInfo: it joins a slash-separated name
// back onto root.
func HostPath(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(name))
}
