// Package kb loads the curated knowledge base and evaluates it against a
// committed genotype set. Modules are small, hand-authored, versioned rules;
// the matcher copies grading and limitations verbatim and never invents
// interpretation.
package kb

import (
	"embed"
	"io/fs"
	"os"
	"path"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/variantlab/genotype-cli/internal/model"
)

//go:embed manifest.yaml modules/*.yaml
var embedded embed.FS

// Manifest pins the knowledge base version and the module files it covers,
// in declaration order. Output order of evaluation follows this order.
type Manifest struct {
	Version string   `yaml:"version"`
	Modules []string `yaml:"modules"`
}

// KnowledgeBase is a loaded, immutable module set.
type KnowledgeBase struct {
	Version string
	Modules []model.KnowledgeModule
}

// LoadEmbedded loads the module set compiled into the binary.
func LoadEmbedded() (*KnowledgeBase, error) {
	return load(embedded, ".")
}

// LoadDir loads a module set from an on-disk directory containing
// manifest.yaml and a modules/ subdirectory.
func LoadDir(dir string) (*KnowledgeBase, error) {
	return load(os.DirFS(dir), ".")
}

func load(fsys fs.FS, root string) (*KnowledgeBase, error) {
	data, err := fs.ReadFile(fsys, path.Join(root, "manifest.yaml"))
	if err != nil {
		return nil, eris.Wrap(err, "kb: read manifest")
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, eris.Wrap(err, "kb: parse manifest")
	}

	kb := &KnowledgeBase{Version: manifest.Version}
	for _, name := range manifest.Modules {
		data, err := fs.ReadFile(fsys, path.Join(root, "modules", name))
		if err != nil {
			return nil, eris.Wrapf(err, "kb: read module %s", name)
		}
		var mod model.KnowledgeModule
		if err := yaml.Unmarshal(data, &mod); err != nil {
			return nil, eris.Wrapf(err, "kb: parse module %s", name)
		}
		if err := validate(&mod); err != nil {
			return nil, eris.Wrapf(err, "kb: module %s", name)
		}
		kb.Modules = append(kb.Modules, mod)
	}
	return kb, nil
}

func validate(mod *model.KnowledgeModule) error {
	if mod.ID == "" {
		return eris.New("missing id")
	}
	if mod.RSID == "" {
		return eris.New("missing rsid")
	}
	if len(mod.Genotypes) == 0 {
		return eris.New("no genotype rules")
	}
	switch mod.EvidenceGrade {
	case model.GradeA, model.GradeB, model.GradeC, model.GradeD, model.GradeInsufficient:
	default:
		return eris.Errorf("invalid evidence grade %q", mod.EvidenceGrade)
	}
	return nil
}

// RSIDs returns the set of markers the knowledge base references.
func (kb *KnowledgeBase) RSIDs() map[string]struct{} {
	set := make(map[string]struct{}, len(kb.Modules))
	for _, mod := range kb.Modules {
		set[mod.RSID] = struct{}{}
	}
	return set
}
