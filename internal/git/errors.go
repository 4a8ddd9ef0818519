package git

import "errors"

// ErrNotARepo indicates the path is not inside a git working copy.
var ErrNotARepo = errors.New("not a git repository")
