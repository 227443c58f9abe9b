package parse

import (
	"path/filepath"

	"emuasm/pkg/asm"
)

// include parses another file in place. Paths are tried relative to the
// including file, then each include directory, then the working directory.
// A file that is already being included is rejected.
func (p *parser) include(at asm.Pos, name, from string) error {
	var candidates []string
	if filepath.IsAbs(name) {
		candidates = []string{name}
	} else {
		if from != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(from), name))
		}
		for _, dir := range p.opts.IncludeDirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
		candidates = append(candidates, name)
	}

	for _, path := range candidates {
		data, err := p.opts.ReadFile(path)
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if p.including[abs] {
			return syntaxErr(at, "circular include of '%s'", name)
		}
		p.including[abs] = true
		err = p.source(string(data), path)
		delete(p.including, abs)
		return err
	}
	return syntaxErr(at, "include file '%s' not found", name)
}
