// Package envfile edits and inspects the developer .env file. Reads go
// through godotenv; writes rewrite single KEY=value lines in place so
// comments and ordering survive.
package envfile

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EnvFile     = ".env"
	LocalFile   = ".env.local"
	ExampleFile = ".env.example"

	// PlaceholderSecret is the SESSION_SECRET value shipped in .env.example.
	PlaceholderSecret = "replace-with-a-strong-random-string"
)

// RequiredVars must be set to real values before the server can start.
var RequiredVars = []string{"DATABASE_URL", "SESSION_SECRET"}

// ErrNoEnvFile is returned when neither .env.local nor .env exists.
var ErrNoEnvFile = errors.New("no .env or .env.local file found")

// ErrNoExample is returned by Init when .env is missing and there is no
// .env.example to copy.
var ErrNoExample = errors.New(".env.example not found")

// IsPlaceholder reports whether v is a template value rather than a real one.
func IsPlaceholder(v string) bool {
	return strings.Contains(v, "your-") || strings.Contains(v, "replace-")
}

// GenerateSecret returns 32 random bytes, base64 encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// BuildDBURL assembles a connection URL with user and password escaped.
func BuildDBURL(scheme, user, password, host, port, name string) string {
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(user, password),
		Host:   host,
		Path:   "/" + name,
	}
	if port != "" {
		u.Host = host + ":" + port
	}
	if password == "" {
		u.User = url.User(user)
	}
	return u.String()
}

// SuspiciousURL reports whether raw carries more than one '@', which
// usually means an unescaped password.
func SuspiciousURL(raw string) bool {
	return strings.Count(raw, "@") > 1
}

// Set replaces the KEY= line in content, or appends one when key is
// absent. Other lines are left untouched.
func Set(content []byte, key, value string) []byte {
	lines := strings.Split(string(content), "\n")
	prefix := key + "="
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			lines[i] = prefix + value
			return []byte(strings.Join(lines, "\n"))
		}
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines[n-1] = prefix + value
		lines = append(lines, "")
	} else {
		lines = append(lines, prefix+value)
	}
	return []byte(strings.Join(lines, "\n"))
}

// SetFile applies Set to the file at path, creating it if needed.
func SetFile(path, key, value string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := os.WriteFile(path, Set(content, key, value), 0o600); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// InitResult describes what Init changed.
type InitResult struct {
	Path           string
	Created        bool // copied from .env.example
	SecretSet      bool
	DatabaseURLSet bool
}

// Init makes sure dir/.env exists, replaces the placeholder session
// secret with a generated one and, when dbURL is given, sets DATABASE_URL
// if it is missing or still a placeholder.
func Init(dir, dbURL string) (InitResult, error) {
	res := InitResult{Path: filepath.Join(dir, EnvFile)}
	content, err := os.ReadFile(res.Path)
	if os.IsNotExist(err) {
		content, err = os.ReadFile(filepath.Join(dir, ExampleFile))
		if os.IsNotExist(err) {
			return res, ErrNoExample
		}
		res.Created = true
	}
	if err != nil {
		return res, errors.Wrap(err, "read env file")
	}

	vars, err := godotenv.Unmarshal(string(content))
	if err != nil {
		return res, errors.Wrapf(err, "parse %s", res.Path)
	}
	if v, ok := vars["SESSION_SECRET"]; !ok || v == "" || v == PlaceholderSecret {
		secret, err := GenerateSecret()
		if err != nil {
			return res, err
		}
		content = Set(content, "SESSION_SECRET", secret)
		res.SecretSet = true
	}
	if dbURL != "" {
		if v := vars["DATABASE_URL"]; v == "" || IsPlaceholder(v) {
			content = Set(content, "DATABASE_URL", dbURL)
			res.DatabaseURLSet = true
		}
	}
	if err := os.WriteFile(res.Path, content, 0o600); err != nil {
		return res, errors.Wrapf(err, "write %s", res.Path)
	}
	return res, nil
}

// Report is the outcome of Check.
type Report struct {
	Path        string
	Missing     []string
	Placeholder []string
}

// OK reports whether every required variable holds a real value.
func (r Report) OK() bool { return len(r.Missing) == 0 && len(r.Placeholder) == 0 }

// Check reads dir/.env.local, falling back to dir/.env, and classifies
// each of the required variables.
func Check(dir string, required []string) (Report, error) {
	var rep Report
	for _, name := range []string{LocalFile, EnvFile} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			rep.Path = p
			break
		}
	}
	if rep.Path == "" {
		return rep, ErrNoEnvFile
	}
	vars, err := godotenv.Read(rep.Path)
	if err != nil {
		return rep, errors.Wrapf(err, "parse %s", rep.Path)
	}
	for _, key := range required {
		v := strings.TrimSpace(vars[key])
		switch {
		case v == "":
			rep.Missing = append(rep.Missing, key)
		case IsPlaceholder(v):
			rep.Placeholder = append(rep.Placeholder, key)
		}
	}
	return rep, nil
}

// String renders the report for the terminal.
func (r Report) String() string {
	var b bytes.Buffer
	if r.OK() {
		fmt.Fprintf(&b, "all required environment variables are set (%s)\n", r.Path)
		return b.String()
	}
	if len(r.Missing) > 0 {
		b.WriteString("missing environment variables:\n")
		for _, k := range r.Missing {
			fmt.Fprintf(&b, "  - %s\n", k)
		}
	}
	if len(r.Placeholder) > 0 {
		b.WriteString("environment variables with placeholder values:\n")
		for _, k := range r.Placeholder {
			fmt.Fprintf(&b, "  - %s\n", k)
		}
	}
	return b.String()
}
