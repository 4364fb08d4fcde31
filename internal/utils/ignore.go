package utils

import (
	"bufio"
	"os"
	"strings"
)

// IgnoreList holds slugs that scraping runs skip before resolution
type IgnoreList struct {
	slugs map[string]struct{}
}

// LoadIgnoreList loads slugs from a file, one per line
func LoadIgnoreList(path string) (*IgnoreList, error) {
	list := &IgnoreList{slugs: make(map[string]struct{})}

	// If file doesn't exist, return empty list
	if path == "" {
		return list, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return list, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		slug := strings.TrimSpace(scanner.Text())
		if slug != "" && !strings.HasPrefix(slug, "#") {
			list.slugs[strings.ToLower(slug)] = struct{}{}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// Contains reports whether slug is ignored. A nil list ignores nothing.
func (l *IgnoreList) Contains(slug string) bool {
	if l == nil {
		return false
	}
	_, ok := l.slugs[strings.ToLower(slug)]
	return ok
}

// Len returns the number of ignored slugs
func (l *IgnoreList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.slugs)
}
