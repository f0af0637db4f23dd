package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// A client config is a handful of scalars plus the tls, metrics and nats
// sections, so these limits sit well above anything legitimate.
const (
	maxConfigSize = 1 << 20 // bytes
	maxJSONDepth  = 16
	maxEnvValue   = 8 << 10 // auth tokens and CA lists
	maxPathLen    = 4096
)

// fileFormat selects the decoder for a config file
type fileFormat int

const (
	formatJSON fileFormat = iota + 1
	formatYAML
)

// formatOf maps a config path to its format by extension
func formatOf(path string) (fileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("only JSON or YAML config files allowed: %s", path)
	}
}

// readConfigFile reads an agentwire config file after checking its name,
// type and size. Symlinks are followed.
func readConfigFile(path string) ([]byte, fileFormat, error) {
	switch {
	case path == "":
		return nil, 0, stderrors.New("empty config path")
	case len(path) > maxPathLen:
		return nil, 0, fmt.Errorf("config path longer than %d bytes", maxPathLen)
	case strings.ContainsRune(path, 0):
		return nil, 0, stderrors.New("config path contains a null byte")
	}

	format, err := formatOf(path)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > maxConfigSize {
		return nil, 0, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), maxConfigSize)
	}

	// The file can grow between Stat and Read
	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, 0, err
	}
	if len(data) > maxConfigSize {
		return nil, 0, fmt.Errorf("%s grew past %d bytes while reading", path, maxConfigSize)
	}
	return data, format, nil
}

// checkEnvValue rejects AGENTWIRE_* values no setting could hold
func checkEnvValue(key, value string) error {
	if len(value) > maxEnvValue {
		return fmt.Errorf("%s is %d bytes, limit is %d", key, len(value), maxEnvValue)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("null byte in %s", key)
	}
	return nil
}

// checkJSONDepth walks the document's tokens and fails once objects or
// arrays nest deeper than maxJSONDepth. Syntax errors surface here as well.
func checkJSONDepth(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if depth != 0 {
				return io.ErrUnexpectedEOF
			}
			return nil
		}
		if err != nil {
			return err
		}

		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nests %d levels, limit is %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
		}
	}
}
