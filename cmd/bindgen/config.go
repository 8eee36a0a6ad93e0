package main

import (
	"os"
	"path/filepath"
	"strings"
)

const configName = "bindgen"

// configCandidates returns the configuration files to try per format. An
// explicit file is used alone; otherwise the working directory wins over
// the user configuration directory. Missing files are skipped by kong.
func configCandidates(user string) (json, yaml, toml []string) {
	if user != "" {
		switch strings.ToLower(filepath.Ext(user)) {
		case ".yaml", ".yml":
			return nil, []string{user}, nil
		case ".toml":
			return nil, nil, []string{user}
		default:
			return []string{user}, nil, nil
		}
	}

	dirs := []string{"."}
	if d, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(d, configName))
	}
	for _, d := range dirs {
		base := filepath.Join(d, configName)
		json = append(json, base+".json")
		yaml = append(yaml, base+".yaml", base+".yml")
		toml = append(toml, base+".toml")
	}
	return json, yaml, toml
}
