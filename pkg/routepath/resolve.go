package routepath

import "strings"

// IsRelative reports whether to is a relative reference ("." , "./x", "../x").
func IsRelative(to string) bool {
	return to == "." || to == ".." || strings.HasPrefix(to, "./") || strings.HasPrefix(to, "../")
}

// Resolve resolves to against from. Absolute targets (leading "/") resolve
// against the root; relative targets resolve against from, which is treated
// as a directory ("/posts" + "./1" = "/posts/1"). Any other target is
// treated as relative to from as well. The result is canonical.
func Resolve(from, to string) (string, error) {
	if to == "" {
		to = "."
	}

	var joined string
	if strings.HasPrefix(to, "/") {
		joined = to
	} else {
		if from == "" {
			from = "/"
		}
		joined = strings.TrimSuffix(from, "/") + "/" + to
	}

	res, err := CanonicalizePath(joined)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// TrimBasepath removes basepath from the front of path. It reports false
// when path does not live under basepath.
func TrimBasepath(path, basepath string) (string, bool) {
	basepath = strings.TrimSuffix(basepath, "/")
	if basepath == "" {
		return path, true
	}
	if path == basepath {
		return "/", true
	}
	if strings.HasPrefix(path, basepath+"/") {
		return path[len(basepath):], true
	}
	return path, false
}

// JoinBasepath prefixes path with basepath.
func JoinBasepath(basepath, path string) string {
	basepath = strings.TrimSuffix(basepath, "/")
	if basepath == "" {
		return path
	}
	if path == "/" {
		return basepath
	}
	return basepath + path
}
