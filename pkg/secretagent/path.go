package secretagent

import (
	"strings"
	"unicode/utf8"
)

// PathPrefix is the scheme tag every secret identifier starts with.
const PathPrefix = "secrets:"

// SecretPath is the parsed form of "secrets:[resource:]key".
//
// Resource and Key are substrings of the identifier passed to ResolvePath
// and share its storage.
type SecretPath struct {
	Resource    string
	HasResource bool
	Key         string
}

// ResolvePath parses path, which must start with prefix. The remainder is
// split on its last colon: the text before is the resource, the text after
// is the key. Without a colon the whole remainder is the key. The remainder
// must be valid UTF-8.
func ResolvePath(path, prefix string) (SecretPath, error) {
	if !strings.HasPrefix(path, prefix) {
		return SecretPath{}, newError(KindBadRequest, "resolve", "missing %q prefix", prefix)
	}

	suffix := path[len(prefix):]
	if suffix == "" {
		return SecretPath{}, newError(KindBadRequest, "resolve", "empty secret key")
	}
	if !utf8.ValidString(suffix) {
		return SecretPath{}, newError(KindBadRequest, "resolve", "secret identifier is not valid UTF-8")
	}

	idx := strings.LastIndexByte(suffix, ':')
	if idx < 0 {
		return SecretPath{Key: suffix}, nil
	}

	sp := SecretPath{
		Resource:    suffix[:idx],
		HasResource: true,
		Key:         suffix[idx+1:],
	}
	if sp.Key == "" {
		return SecretPath{}, newError(KindBadRequest, "resolve", "empty secret key")
	}
	return sp, nil
}

// String renders the path back into identifier form.
func (p SecretPath) String() string {
	if p.HasResource {
		return PathPrefix + p.Resource + ":" + p.Key
	}
	return PathPrefix + p.Key
}
