package engine

import "strings"

const (
	encryptedFileContentType = "binary/encrypted-s3fuse-file_0100"
	fifoContentType          = "binary/s3fuse-fifo_0100"
	symlinkContentType       = "text/symlink"
)

// Checker inspects a candidate HEAD response and either produces a fresh
// Object for path or declines by returning nil. Checkers run in
// descending priority order; the first producer wins.
type Checker struct {
	Priority int
	Name     string
	Match    func(path string, resp *HeadResult) Object
}

// Registry is the ordered list of type checkers consulted on every
// successful HEAD. It is safe to extend (e.g. by a future FIFO-only
// deployment) but ships pre-populated with the stock checkers below.
type Registry struct {
	checkers []Checker
}

// NewRegistry builds a Registry with the stock checkers installed in
// their spec-mandated priority order: directory, encrypted file, FIFO,
// symlink, regular file (always matches, lowest priority).
func NewRegistry() *Registry {
	r := &Registry{}
	r.Add(Checker{Priority: 100, Name: "directory", Match: checkDirectory})
	r.Add(Checker{Priority: 80, Name: "encrypted-file", Match: checkEncryptedFile})
	r.Add(Checker{Priority: 60, Name: "fifo", Match: checkFIFO})
	r.Add(Checker{Priority: 40, Name: "symlink", Match: checkSymlink})
	r.Add(Checker{Priority: 0, Name: "file", Match: checkFile})
	return r
}

// Add inserts c, keeping checkers sorted by descending priority.
func (r *Registry) Add(c Checker) {
	i := 0
	for i < len(r.checkers) && r.checkers[i].Priority >= c.Priority {
		i++
	}
	r.checkers = append(r.checkers, Checker{})
	copy(r.checkers[i+1:], r.checkers[i:])
	r.checkers[i] = c
}

// Construct walks the registry in priority order and returns the first
// checker's produced Object, already init()-ed against path/resp.
func (r *Registry) Construct(path string, resp *HeadResult) Object {
	for _, c := range r.checkers {
		if obj := c.Match(path, resp); obj != nil {
			obj.init(path, resp)
			return obj
		}
	}
	return nil
}

func checkDirectory(path string, resp *HeadResult) Object {
	if strings.HasSuffix(path, "/") {
		return &Directory{}
	}
	return nil
}

func checkEncryptedFile(path string, resp *HeadResult) Object {
	if resp.ContentType == encryptedFileContentType {
		return &EncryptedFile{}
	}
	return nil
}

func checkFIFO(path string, resp *HeadResult) Object {
	if resp.ContentType == fifoContentType {
		return &File{kind: KindFIFO}
	}
	return nil
}

func checkSymlink(path string, resp *HeadResult) Object {
	if resp.ContentType == symlinkContentType {
		return &Symlink{}
	}
	return nil
}

func checkFile(path string, resp *HeadResult) Object {
	return &File{kind: KindFile}
}

// ContentTypeForKind returns the content-type marker a PUT must carry for
// the registry to reconstruct kind on the next HEAD. Plain files and
// directories need no marker: directories are recognized by their
// trailing "/" key, and a plain file is the registry's always-match
// fallback.
func ContentTypeForKind(kind Kind) string {
	switch kind {
	case KindEncryptedFile:
		return encryptedFileContentType
	case KindFIFO:
		return fifoContentType
	case KindSymlink:
		return symlinkContentType
	default:
		return ""
	}
}
