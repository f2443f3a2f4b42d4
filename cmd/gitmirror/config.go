package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/coldtrail/gitmirror/pkg/objecthash"
	"github.com/coldtrail/gitmirror/pkg/session"
)

// fileConfig is the on-disk shape of a gitmirror config file, loaded with
// BurntSushi/toml and translated into session.Options.
type fileConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	TLS             bool   `toml:"tls"`
	RepositoryPath  string `toml:"repository_path"`
	Branch          string `toml:"branch"`
	TargetDirectory string `toml:"target_directory"`
	WorkDirectory   string `toml:"work_directory"`
	Have            string `toml:"have"`
	Want            string `toml:"want"`
	KeepPack        bool   `toml:"keep_pack"`
	UsePack         bool   `toml:"use_pack"`
	Verbosity       int    `toml:"verbosity"`
	UserAgent       string `toml:"user_agent"`
}

// loadOptions reads path as TOML and fills in the pieces of
// session.Options a config file can supply. Command-line flags applied
// afterward by the caller take precedence over anything loaded here.
func loadOptions(path string) (*session.Options, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	port := fc.Port
	if port == 0 {
		port = 443
	}

	return &session.Options{
		Host:            fc.Host,
		Port:            port,
		UseTLS:          fc.TLS || port == 443,
		RepositoryPath:  fc.RepositoryPath,
		Branch:          fc.Branch,
		TargetDirectory: fc.TargetDirectory,
		WorkDirectory:   fc.WorkDirectory,
		Have:            objecthash.Hash(fc.Have),
		Want:            objecthash.Hash(fc.Want),
		KeepPack:        fc.KeepPack,
		UsePack:         fc.UsePack,
		Verbosity:       fc.Verbosity,
		UserAgent:       fc.UserAgent,
		Progress: func(level int, msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	}, nil
}
