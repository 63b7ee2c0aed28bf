// Copyright 2025 Livepack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"livepack.dev/go/encoding/snapshot"
	"livepack.dev/go/errors"
	"livepack.dev/go/pack"
)

// config is the YAML configuration file (livepack.yaml). Flags override
// file settings.
type config struct {
	Format     string `yaml:"format"`
	StrictEnv  bool   `yaml:"strictEnv"`
	Minify     bool   `yaml:"minify"`
	Mangle     bool   `yaml:"mangle"`
	Inline     bool   `yaml:"inline"`
	Comments   bool   `yaml:"comments"`
	SourceMaps string `yaml:"sourceMaps"`

	Ext    string `yaml:"ext"`
	MapExt string `yaml:"mapExt"`

	EntryChunkName  string `yaml:"entryChunkName"`
	SplitChunkName  string `yaml:"splitChunkName"`
	CommonChunkName string `yaml:"commonChunkName"`

	OutputDir string `yaml:"outputDir"`
	Stats     string `yaml:"stats"`

	NativeNamespaces *bool `yaml:"nativeNamespaces"`
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "livepack",
		Short:         "serialize captured program state to JavaScript source",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newBuildCmd())
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	return cmd
}

func newBuildCmd() *cobra.Command {
	var (
		configPath string
		outputDir  string
		format     string
		minify     bool
		mangle     bool
		inline     bool
		stats      string
	)
	cmd := &cobra.Command{
		Use:   "build <snapshot.json>",
		Short: "serialize a snapshot into output files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				cfg.Format = format
			}
			if cmd.Flags().Changed("minify") {
				cfg.Minify = minify
			}
			if cmd.Flags().Changed("mangle") {
				cfg.Mangle = mangle
			}
			if cmd.Flags().Changed("inline") {
				cfg.Inline = inline
			}
			if cmd.Flags().Changed("stats") {
				cfg.Stats = stats
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputDir = outputDir
			}
			if err := runBuild(cmd, args[0], cfg); err != nil {
				errors.Print(cmd.ErrOrStderr(), err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "livepack.yaml", "configuration file")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&format, "format", "cjs", "output format: cjs, esm, js, exec")
	cmd.Flags().BoolVar(&minify, "minify", false, "minify output")
	cmd.Flags().BoolVar(&mangle, "mangle", false, "use shortest identifiers")
	cmd.Flags().BoolVar(&inline, "inline", false, "inline single-use bindings")
	cmd.Flags().StringVar(&stats, "stats", "", "write a stats JSON file")
	return cmd
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

func runBuild(cmd *cobra.Command, snapshotPath string, cfg *config) error {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return err
	}
	g, err := snapshot.Decode(data)
	if err != nil {
		return err
	}

	opts := pack.Options{
		Format:           cfg.Format,
		StrictEnv:        cfg.StrictEnv,
		Minify:           cfg.Minify,
		Mangle:           cfg.Mangle,
		Inline:           cfg.Inline,
		Comments:         cfg.Comments,
		SourceMaps:       cfg.SourceMaps,
		Ext:              cfg.Ext,
		MapExt:           cfg.MapExt,
		EntryChunkName:   cfg.EntryChunkName,
		SplitChunkName:   cfg.SplitChunkName,
		CommonChunkName:  cfg.CommonChunkName,
		OutputDir:        cfg.OutputDir,
		Stats:            cfg.Stats,
		NativeNamespaces: cfg.NativeNamespaces == nil || *cfg.NativeNamespaces,
	}

	s := pack.NewSerializer(g.Registry, opts)
	for _, e := range g.Entries {
		root, err := g.Value(e.Root)
		if err != nil {
			return err
		}
		name := e.Name
		if name == "" {
			name = "index"
		}
		s.AddEntry(name, root)
	}
	for _, sp := range g.Splits {
		root, err := g.Value(sp.Root)
		if err != nil {
			return err
		}
		if sp.Async {
			s.SplitAsync(root, sp.Name)
		} else {
			s.Split(root, sp.Name)
		}
	}

	res, err := s.Serialize()
	if err != nil {
		return err
	}

	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	for _, f := range res.Files {
		path := filepath.Join(dir, f.Filename)
		if err := os.WriteFile(path, f.Content, 0o666); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.Type, path)
	}
	if cfg.Stats != "" && res.Stats != nil {
		if err := os.WriteFile(filepath.Join(dir, cfg.Stats), res.Stats, 0o666); err != nil {
			return err
		}
	}
	return nil
}
