package engine

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"strings"
)

// xattrMetaPrefix is the provider-meta-prefix-relative key under which
// serialized xattrs live; the provider adapter adds its own
// provider-meta-prefix (e.g. "x-amz-meta-") on top of this.
const xattrMetaPrefix = "xattr_"

// reservedXattrPrefixes cannot be set directly through the public xattr API;
// they are reserved for the filesystem's own bookkeeping.
var reservedXattrPrefixes = []string{"s3fuse-", xattrMetaPrefix}

// XattrFlags describe how a value behaves through the xattr API.
type XattrFlags struct {
	Visible      bool
	Writable     bool
	Serializable bool
	Removable    bool
}

// Xattr is either a static value stored on the object, or a reference to a
// live field the object computes on demand (MD5, SHA-256 root, content
// type, etag). Reference xattrs are read-only and never serialize.
type Xattr struct {
	Name  string
	Flags XattrFlags

	value []byte
	ref   func() []byte
}

// NewStaticXattr creates a static, visible, writable, serializable,
// removable xattr — the default shape for a user-set value.
func NewStaticXattr(name string, value []byte) *Xattr {
	return &Xattr{
		Name:  name,
		Flags: XattrFlags{Visible: true, Writable: true, Serializable: true, Removable: true},
		value: value,
	}
}

// NewReferenceXattr creates a read-only xattr whose value is computed by
// resolve() at read time and never persisted.
func NewReferenceXattr(name string, resolve func() []byte) *Xattr {
	return &Xattr{
		Name:  name,
		Flags: XattrFlags{Visible: true, Writable: false, Serializable: false, Removable: false},
		ref:   resolve,
	}
}

// Value returns the xattr's current bytes, resolving a reference xattr if
// necessary.
func (x *Xattr) Value() []byte {
	if x.ref != nil {
		return x.ref()
	}
	return x.value
}

// IsReservedXattrName reports whether name begins with a prefix the
// public xattr API may not set directly.
func IsReservedXattrName(name string) bool {
	for _, prefix := range reservedXattrPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func isHeaderSafe(s string) bool {
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}

// encodeXattrMetaEntry turns a (name, value) xattr into the (metaKey,
// metaValue) pair written into provider meta headers. Safe names/values
// pass through unchanged as "name" -> value; anything containing bytes
// unsafe for an HTTP header is base64-wrapped under an md5-keyed
// xattr_<hash> entry.
func encodeXattrMetaEntry(name string, value []byte) (metaKey, metaValue string) {
	if isHeaderSafe(name) && isHeaderSafe(string(value)) {
		return name, string(value)
	}
	sum := md5.Sum([]byte(name))
	metaKey = fmt.Sprintf("%s%x", xattrMetaPrefix, sum)
	metaValue = base64.StdEncoding.EncodeToString([]byte(name)) + " " + base64.StdEncoding.EncodeToString(value)
	return metaKey, metaValue
}

// systemMetaKeys are the meta-prefix keys the object model itself owns;
// everything else found under the meta prefix is a user xattr.
var systemMetaKeys = map[string]bool{
	"mode": true, "uid": true, "gid": true, "mtime": true, "mtime-etag": true,
	"sha256": true, "enc-iv": true, "enc-metadata": true, "target": true,
}

func isXattrMetaKey(key string) bool {
	return !systemMetaKeys[key]
}

// decodeXattrMetaEntry reverses encodeXattrMetaEntry given the raw (key,
// value) pulled out of provider meta headers.
func decodeXattrMetaEntry(key, value string) (name string, data []byte, err error) {
	if strings.HasPrefix(key, xattrMetaPrefix) {
		parts := strings.SplitN(value, " ", 2)
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("engine: malformed encoded xattr entry for %q", key)
		}
		nameBytes, err := base64.StdEncoding.DecodeString(parts[0])
		if err != nil {
			return "", nil, fmt.Errorf("engine: bad xattr name encoding: %w", err)
		}
		valueBytes, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return "", nil, fmt.Errorf("engine: bad xattr value encoding: %w", err)
		}
		return string(nameBytes), valueBytes, nil
	}
	return key, []byte(value), nil
}

// EncodeXattrsForHeader renders a set of static xattrs into the
// provider-meta-prefix-relative key/value pairs that belong in an outgoing
// request's metadata headers. Reference xattrs are skipped.
func EncodeXattrsForHeader(xattrs map[string]*Xattr) map[string]string {
	out := make(map[string]string, len(xattrs))
	for name, x := range xattrs {
		if !x.Flags.Serializable {
			continue
		}
		k, v := encodeXattrMetaEntry(name, x.Value())
		out[k] = v
	}
	return out
}
