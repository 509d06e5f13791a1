package credentials

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// ErrEmptyToken is returned when the credential file exists but holds nothing
var ErrEmptyToken = errors.New("token file is empty")

// Token is the opaque bearer credential issued by the hub
type Token struct {
	value    string
	fileName string
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate the token when stringified
//
func (t Token) String() string {
	return fmt.Sprintf("file [%s] token [%s]", t.fileName, hashOf(t.value))
}

// Value returns the raw bearer token
func (t Token) Value() string {
	return t.value
}

// Load reads the bearer token from fileName, expanding a leading ~.  The
// token is read once at startup; surrounding whitespace is trimmed.
func Load(fileName string) (Token, error) {
	path, err := homedir.Expand(fileName)
	if err != nil {
		return Token{}, errors.Wrapf(err, "expanding token file path %s", fileName)
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Token{}, errors.Wrapf(err, "reading hub token from %s", path)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return Token{}, errors.Wrapf(ErrEmptyToken, "reading hub token from %s", path)
	}

	return Token{value: value, fileName: path}, nil
}
