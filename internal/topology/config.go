package topology

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pfperroni/treasure-hunt-framework/internal/errors"
)

// TreeConfig is the YAML description of a tree topology used by the drivers.
//
//	nodes:
//	  - id: 0
//	  - id: 1
//	    parent: 0
type TreeConfig struct {
	Nodes []NodeConfig `yaml:"nodes"`
}

// NodeConfig describes one node. The single node without a parent is the
// root.
type NodeConfig struct {
	ID     int  `yaml:"id"`
	Parent *int `yaml:"parent"`
}

// Load parses a TreeConfig document and builds the tree it describes. The
// tree is returned unlocked.
func Load(data []byte) (*Tree, error) {
	var cfg TreeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing topology document").WithKind(errors.KindInvalidArgument)
	}
	return cfg.Build()
}

// LoadFile reads and builds the topology from a YAML file.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading topology file").WithKind(errors.KindInvalidArgument)
	}
	return Load(data)
}

// Build constructs the tree. Nodes must be listed parents-first.
func (cfg *TreeConfig) Build() (*Tree, error) {
	if len(cfg.Nodes) == 0 {
		return nil, errors.InvalidArgument("topology document has no nodes")
	}
	tree, err := NewTree(len(cfg.Nodes))
	if err != nil {
		return nil, err
	}
	for _, nc := range cfg.Nodes {
		if nc.Parent == nil {
			_, err = tree.AddRootNode(nc.ID)
		} else {
			_, err = tree.AddNode(nc.ID, *nc.Parent)
		}
		if err != nil {
			return nil, err
		}
	}
	return tree, nil
}
