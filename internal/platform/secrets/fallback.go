package secrets

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// loadFallback reads the developer secrets file: one "secret://name=value" per line with
// blank lines and # comments ignored. Entries apply to every version of the secret. A
// missing file yields an empty set.
func loadFallback(path string, logger *zap.Logger) map[string]string {
	if path == "" {
		return map[string]string{}
	}
	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("secrets: fallback file unreadable", zap.String("path", path), zap.Error(err))
		}
		return map[string]string{}
	}
	defer file.Close()

	values, err := parseFallback(file)
	if err != nil {
		logger.Warn("secrets: fallback file truncated", zap.String("path", path), zap.Error(err))
	}
	return values
}

func parseFallback(r io.Reader) (map[string]string, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Values may contain '='; references in this file never carry a query.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ref, err := parseReference(key)
		if err != nil {
			continue
		}
		values[ref.String()] = strings.TrimSpace(value)
	}
	return values, scanner.Err()
}
