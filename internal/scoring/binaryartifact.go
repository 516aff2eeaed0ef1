package scoring

import "strings"

// File suffixes associated with checked-in binary artifacts.
var binarySuffixes = map[string]bool{
	"crx": true, "deb": true, "dex": true, "dey": true, "elf": true,
	"o": true, "so": true, "iso": true, "class": true, "jar": true,
	"bundle": true, "dylib": true, "lib": true, "msi": true, "dll": true,
	"drv": true, "efi": true, "exe": true, "ocx": true, "pyc": true,
	"pyo": true, "par": true, "rpm": true, "whl": true,
}

// BinaryArtifactScore deducts one point per binary blob found in the
// default branch tree, floored at zero.
func BinaryArtifactScore(paths []string) Score {
	score := MaxScore

	for _, path := range paths {
		dot := strings.LastIndex(path, ".")
		if dot < 0 {
			continue
		}

		if binarySuffixes[strings.ToLower(path[dot+1:])] {
			score--
		}
		if score <= MinScore {
			return MinScore
		}
	}

	return score
}
