// Package artifacts reads hardhat compilation artifacts from a directory.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/solc"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrEmptyBytecode    = errors.New("artifact has no bytecode")
)

// Dir looks artifacts up by contract name. Both a flat layout
// (<root>/<Name>.json) and the hardhat tree layout
// (<root>/**/<Name>.sol/<Name>.json) are supported.
type Dir struct {
	fs   afero.Fs
	root string
}

func OpenDir(fs afero.Fs, root string) *Dir {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Dir{fs: fs, root: root}
}

func (d *Dir) Root() string {
	return d.root
}

// Read returns the artifact for the named contract.
func (d *Dir) Read(name string) (*solc.HardhatArtifact, error) {
	p, err := d.find(name)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(d.fs, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	var art solc.HardhatArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", p, err)
	}
	if art.ContractName == "" {
		art.ContractName = name
	}
	if art.Bytecode == "" || art.Bytecode == "0x" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBytecode, name)
	}
	return &art, nil
}

func (d *Dir) find(name string) (string, error) {
	flat := filepath.Join(d.root, name+".json")
	if ok, err := afero.Exists(d.fs, flat); err != nil {
		return "", err
	} else if ok {
		return flat, nil
	}

	var found string
	target := name + ".json"
	walkErr := afero.Walk(d.fs, d.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != target {
			return nil
		}
		if filepath.Base(filepath.Dir(p)) != name+".sol" {
			return nil
		}
		found = p
		return fs.SkipAll
	})
	if walkErr != nil && !errors.Is(walkErr, fs.SkipAll) {
		return "", fmt.Errorf("failed to search artifacts in %s: %w", d.root, walkErr)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, d.root)
	}
	return found, nil
}
