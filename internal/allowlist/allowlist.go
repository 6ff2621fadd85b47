// Package allowlist holds the set of GitHub logins whose commits are
// surfaced on the dashboard.
package allowlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

type List struct {
	logins map[string]struct{}
}

func New(logins ...string) *List {
	l := &List{logins: make(map[string]struct{}, len(logins))}
	for _, login := range logins {
		login = strings.TrimSpace(login)
		if login == "" {
			continue
		}
		l.logins[login] = struct{}{}
	}
	return l
}

// Load reads a newline-delimited file of logins. Blank lines and lines
// starting with # are ignored.
func Load(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening allow-list: %w", err)
	}
	defer func() { _ = f.Close() }()

	l, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading allow-list %s: %w", path, err)
	}
	return l, nil
}

func Parse(r io.Reader) (*List, error) {
	var logins []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		logins = append(logins, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(logins...), nil
}

// Contains reports exact membership. A nil list contains nobody.
func (l *List) Contains(login string) bool {
	if l == nil || login == "" {
		return false
	}
	_, ok := l.logins[login]
	return ok
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.logins)
}

func (l *List) Logins() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.logins))
	for login := range l.logins {
		out = append(out, login)
	}
	sort.Strings(out)
	return out
}
