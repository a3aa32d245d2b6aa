package extract

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/0x5457/fs-index/internal/models"
)

// codeTypes maps source extensions to a human readable description.
var codeTypes = map[string]string{
	".py":     "Python source code",
	".js":     "JavaScript source code",
	".ts":     "TypeScript source code",
	".tsx":    "TypeScript JSX source code",
	".go":     "Go source code",
	".rs":     "Rust source code",
	".java":   "Java source code",
	".c":      "C source code",
	".h":      "C header file",
	".cpp":    "C++ source code",
	".hpp":    "C++ header file",
	".cs":     "C# source code",
	".rb":     "Ruby source code",
	".php":    "PHP source code",
	".swift":  "Swift source code",
	".kt":     "Kotlin source code",
	".scala":  "Scala source code",
	".sh":     "Shell script",
	".sql":    "SQL script",
	".lua":    "Lua script",
	".r":      "R script",
	".pl":     "Perl source code",
	".asm":    "Assembly language source code",
	".dart":   "Dart source code",
	".hs":     "Haskell source code",
	".erl":    "Erlang source code",
	".clj":    "Clojure source code",
	".elm":    "Elm source code",
	".jl":     "Julia source code",
	".groovy": "Groovy source code",
	".fs":     "F# source code",
	".vb":     "Visual Basic .NET source code",
	".coffee": "CoffeeScript source code",
	".d":      "D source code",
}

var textTypes = map[string]string{
	".md":   "Markdown file",
	".txt":  "Text file",
	".rst":  "reStructuredText file",
	".csv":  "CSV file",
	".json": "JSON file",
	".xml":  "XML file",
	".html": "HTML file",
	".css":  "CSS file",
	".yaml": "YAML file",
	".yml":  "YAML file",
	".toml": "TOML file",
	".ini":  "INI file",
	".log":  "Log file",
	".tex":  "LaTeX file",
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

// DetectKind classifies a file by extension and, for unknown extensions, by
// sniffing the first bytes of its content. The second value describes the
// file type for code and text files.
func DetectKind(path string, head []byte) (models.Kind, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if desc, ok := codeTypes[ext]; ok {
		return models.KindCode, desc
	}
	if desc, ok := textTypes[ext]; ok {
		return models.KindText, desc
	}
	if _, ok := imageTypes[ext]; ok {
		return models.KindImage, ""
	}
	if len(head) == 0 {
		return models.KindText, ""
	}
	ct := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(ct, "text/"):
		return models.KindText, ""
	case strings.HasPrefix(ct, "image/"):
		return models.KindImage, ""
	default:
		return models.KindOther, ""
	}
}

func imageMIME(path string, head []byte) string {
	if ct, ok := imageTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return http.DetectContentType(head)
}
