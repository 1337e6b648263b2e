// Package file serves session scripts from YAML documents on disk.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/koscakluka/ema-playback/core/scripts"
)

// Generator reads a script from Path. When Path is a directory, the request
// topic selects "<topic>.yaml" inside it.
type Generator struct {
	Path string
}

func (g Generator) GenerateScript(ctx context.Context, req scripts.Request) (*scripts.Script, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := g.resolve(req)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	return Parse(data)
}

func (g Generator) resolve(req scripts.Request) (string, error) {
	info, err := os.Stat(g.Path)
	if err != nil {
		return "", fmt.Errorf("stat script path: %w", err)
	}
	if !info.IsDir() {
		return g.Path, nil
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return "", fmt.Errorf("script directory %s needs a topic", g.Path)
	}
	name := strings.ReplaceAll(strings.ToLower(topic), " ", "-")
	for _, ext := range []string{".yaml", ".yml"} {
		candidate := filepath.Join(g.Path, name+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no script for topic %q in %s", topic, g.Path)
}

// Parse decodes a YAML script document.
func Parse(data []byte) (*scripts.Script, error) {
	var script scripts.Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return &script, nil
}

// Marshal encodes a script as YAML, the format [Parse] reads.
func Marshal(script *scripts.Script) ([]byte, error) {
	return yaml.Marshal(script)
}
