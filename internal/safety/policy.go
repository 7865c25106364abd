package safety

import (
	"path"
	"strings"
)

// protectedManifests may only change through the add_dependencies tool.
var protectedManifests = map[string]struct{}{
	"pyproject.toml": {},
	"uv.lock":        {},
}

// ValidateWritePath resolves relPath under absRoot for writing. On top of the
// boundary checks it denies writes under .agent/ (telemetry) and .venv/, and to
// the project dependency manifests at any depth.
func ValidateWritePath(absRoot, relPath string) (string, error) {
	candidate, rel, err := resolveInside(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", ToolError{Code: "ERR_NOT_A_FILE", Message: "path must name a file"}
	}

	for _, dir := range []string{".agent", ".venv"} {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return "", ToolError{Code: "ERR_DENIED_WRITE", Message: "writes under " + dir + "/ are not allowed"}
		}
	}
	if _, ok := protectedManifests[path.Base(rel)]; ok {
		return "", ToolError{Code: "ERR_DENIED_WRITE", Message: "dependency manifests are managed by add_dependencies"}
	}
	return candidate, nil
}
