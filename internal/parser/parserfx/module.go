package parserfx

import (
	"github.com/0x5457/fs-index/internal/parser"
	"github.com/0x5457/fs-index/internal/parser/tsparser"
	"go.uber.org/fx"
)

// NewOutliners lists the source outliners available to the extractor
func NewOutliners() []parser.Outliner {
	return []parser.Outliner{tsparser.New()}
}

// Module provides parser components
var Module = fx.Module("parser",
	fx.Provide(NewOutliners),
)
