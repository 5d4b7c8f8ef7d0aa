package file

type ReadFileArgs struct {
	Path string `json:"path"`
}

func (a *ReadFileArgs) Validate() error {
	if a.Path == "" {
		return ErrPathRequired
	}
	return nil
}

type WriteFileArgs struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	CreateDirs bool   `json:"createDirs,omitempty"`
}

func (a *WriteFileArgs) Validate() error {
	if a.Path == "" {
		return ErrPathRequired
	}
	return nil
}

type DeletePathArgs struct {
	Path string `json:"path"`
}

func (a *DeletePathArgs) Validate() error {
	if a.Path == "" {
		return ErrPathRequired
	}
	return nil
}

// ApplyPatchArgs replaces the whole file; no structural diff is applied.
type ApplyPatchArgs struct {
	Path       string `json:"path"`
	NewContent string `json:"newContent"`
}

func (a *ApplyPatchArgs) Validate() error {
	if a.Path == "" {
		return ErrPathRequired
	}
	return nil
}

type ListFilesArgs struct {
	Under string `json:"under,omitempty"`
	Max   int    `json:"max,omitempty"`
}

func (a *ListFilesArgs) Validate() error {
	if a.Max < 0 {
		return ErrInvalidMax
	}
	return nil
}
